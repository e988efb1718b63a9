package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/scheduler/mock"
	"github.com/fluxcd/homeless/pkg/spec"
)

func TestHandleKeepsJobOrder(t *testing.T) {
	var got []string
	m := &mock.Client{
		PlanArgTest: func(job *spec.Map) error {
			got = job.Keys()
			return nil
		},
	}
	h := &Handler{Scheduler: m, Logger: log.NewNopLogger()}
	_, err := h.Handle(context.Background(), []byte(`{"action": "plan", "spec": {"Type": "service", "ID": "helloworld", "Name": "helloworld"}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Type", "ID", "Name"}, got)
}

func TestHandleIndex(t *testing.T) {
	var index scheduler.ModifyIndex
	m := &mock.Client{
		SubmitArgTest: func(job *spec.Map, i scheduler.ModifyIndex) error {
			index = i
			return nil
		},
	}
	h := &Handler{Scheduler: m}
	_, err := h.Handle(context.Background(), []byte(`{"action": "run", "spec": {"ID": "x"}, "index": 9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, scheduler.ModifyIndex(9007199254740993), index)
}

func TestHandleBadPayloads(t *testing.T) {
	h := &Handler{Scheduler: &mock.Client{}}
	for _, payload := range []string{
		`not json`,
		`{}`,
		`{"action": "drop_tables"}`,
		`{"action": "plan"}`,
		`{"action": "run", "spec": {"ID": "x"}}`,
		`{"action": "run", "spec": {"ID": "x"}, "index": "seven"}`,
		`{"action": "get_eval"}`,
		`{"action": "get_deployment", "deployment_id": ""}`,
		`{"action": "get_last_deployment"}`,
		`{"action": "promote"}`,
		`{"action": "put_kv", "key": "k", "value": "v"}`,
	} {
		_, err := h.Handle(context.Background(), []byte(payload))
		if assert.Error(t, err, payload) {
			assert.True(t, herr.IsConfiguration(err), payload)
			var bad *BadPayloadError
			assert.True(t, errors.As(err, &bad), payload)
		}
	}
}

func TestServeSchedulerError(t *testing.T) {
	m := &mock.Client{
		DeploymentError: &scheduler.CallError{Method: "GET", Target: "/v1/deployment/x", StatusCode: 404, Body: "deployment not found"},
	}
	srv := httptest.NewServer(NewHandler(&Handler{Scheduler: m}, NewRouter()))
	defer srv.Close()

	req, _ := http.NewRequest("POST", srv.URL+"/v1/invoke", strings.NewReader(`{"action": "get_deployment", "deployment_id": "x"}`))
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var e herr.Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, herr.Scheduler, e.Type)
	assert.Contains(t, e.Help, "deployment not found")
}

func TestServeNotFound(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&Handler{Scheduler: &mock.Client{}}, NewRouter()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v2/invoke", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
