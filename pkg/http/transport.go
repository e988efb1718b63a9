package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
)

// MakeURL builds the URL of the named route relative to endpoint.
// pathVars fill in the route's variables; queryParams are added as
// the query string. Both are given as alternating names and values.
func MakeURL(endpoint string, router *mux.Router, routeName string, pathVars []string, queryParams ...string) (*url.URL, error) {
	if len(queryParams)%2 != 0 {
		panic("queryParams must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	routeURL, err := route.URLPath(pathVars...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	v := url.Values{}
	for i := 0; i < len(queryParams); i += 2 {
		v.Add(queryParams[i], queryParams[i+1])
	}

	endpointURL.Path = path.Join(endpointURL.Path, routeURL.Path)
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}

// WriteError writes err with the status code given. Clients that
// accept JSON get the error encoded, so they can decode it back into
// an *herr.Error; clients asking for text get its help; anyone else
// gets the bare message.
func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	body, contentType := []byte(err.Error()), contentText
	if r.Header.Get("Accept") != "" {
		switch negotiateContentType(r, contentJSON, contentText) {
		case contentJSON:
			encoded, encodeErr := json.Marshal(err)
			if encodeErr != nil {
				code = http.StatusInternalServerError
				body = []byte(fmt.Sprintf("Error encoding error response: %s\n\nOriginal error: %s", encodeErr, err))
				break
			}
			body, contentType = encoded, contentJSON
		case contentText:
			if e, ok := err.(*herr.Error); ok {
				body = []byte(e.Help)
			}
		}
	}
	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}

// RawJSONResponse writes an already encoded JSON body.
func RawJSONResponse(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", contentJSON+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func JSONResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RawJSONResponse(w, body)
}

// ErrorResponse writes err with a status code chosen by its type.
// Errors that aren't already an *herr.Error are covered as server
// errors.
func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	var outErr *herr.Error
	if !errors.As(apiError, &outErr) {
		outErr = herr.CoverAllError(apiError)
	}
	var code int
	switch outErr.Type {
	case herr.Configuration, herr.Merge:
		code = http.StatusUnprocessableEntity
	case herr.Scheduler, herr.Placement:
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	WriteError(w, r, code, outErr)
}
