package proxy

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/weaveworks/common/middleware"

	herr "github.com/fluxcd/homeless/pkg/errors"
	transport "github.com/fluxcd/homeless/pkg/http"
	hmetrics "github.com/fluxcd/homeless/pkg/metrics"
	"github.com/fluxcd/homeless/pkg/scheduler"
)

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: hmetrics.Namespace,
		Subsystem: "proxy",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{hmetrics.LabelMethod, "route", "status_code", "ws"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

func NewRouter() *mux.Router {
	r := transport.NewProxyRouter()
	// We assume every request that doesn't match a route is a client
	// of a different version.
	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, http.StatusNotFound, transport.MakeAPINotFound(r.URL.Path))
	})
	return r
}

// NewHandler serves h over HTTP, so it can stand in for a function.
func NewHandler(h *Handler, r *mux.Router) http.Handler {
	r.Get(transport.Invoke).HandlerFunc(h.ServeInvoke)
	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(r)
}

func (h *Handler) ServeInvoke(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	result, err := h.Handle(r.Context(), payload)
	if err != nil {
		transport.ErrorResponse(w, r, classify(err))
		return
	}
	transport.RawJSONResponse(w, result)
}

// classify gives errors from the scheduler their type, so clients can
// tell them from errors in the proxy.
func classify(err error) error {
	var typed *herr.Error
	if errors.As(err, &typed) {
		return err
	}
	var callErr *scheduler.CallError
	if errors.As(err, &callErr) {
		return &herr.Error{
			Type: herr.Scheduler,
			Help: `The scheduler refused a request relayed by the proxy:

    ` + callErr.Error() + `
`,
			Err: err,
		}
	}
	return err
}
