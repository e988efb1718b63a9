package http

import (
	"github.com/gorilla/mux"
)

// Nomad HTTP API
const (
	PlanJob          = "PlanJob"
	RegisterJob      = "RegisterJob"
	GetEvaluation    = "GetEvaluation"
	GetDeployment    = "GetDeployment"
	LatestDeployment = "LatestDeployment"
	PromoteCanaries  = "PromoteCanaries"
)

// Consul HTTP API
const (
	PutKV = "PutKV"
)

// The proxy, which relays actions to Nomad and Consul
const (
	Invoke = "Invoke"
)

func NewNomadRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(PlanJob).Methods("POST").Path("/v1/job/{id}/plan")
	r.NewRoute().Name(RegisterJob).Methods("POST").Path("/v1/jobs")
	r.NewRoute().Name(GetEvaluation).Methods("GET").Path("/v1/evaluation/{id}")
	r.NewRoute().Name(GetDeployment).Methods("GET").Path("/v1/deployment/{id}")
	r.NewRoute().Name(LatestDeployment).Methods("GET").Path("/v1/job/{id}/deployment")
	r.NewRoute().Name(PromoteCanaries).Methods("POST").Path("/v1/deployment/promote/{id}")
	return r
}

func NewConsulRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(PutKV).Methods("PUT").Path("/v1/kv/{key:.+}")
	return r
}

func NewProxyRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(Invoke).Methods("POST").Path("/v1/invoke")
	return r
}
