// Package client is a small JSON-over-HTTP client for APIs described
// by a gorilla/mux route table.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
	transport "github.com/fluxcd/homeless/pkg/http"
	"github.com/fluxcd/homeless/pkg/scheduler"
)

// Token is an access token sent in the named header.
type Token struct {
	Header string
	Value  string
}

func (t Token) Set(req *http.Request) {
	if t.Value != "" {
		req.Header.Set(t.Header, t.Value)
	}
}

type Client struct {
	client   *http.Client
	token    Token
	router   *mux.Router
	endpoint string
}

func New(c *http.Client, router *mux.Router, endpoint string, t Token) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{
		client:   c,
		token:    t,
		router:   router,
		endpoint: endpoint,
	}
}

// Route names a route in the client's table, with values for its
// path variables.
type Route struct {
	Name string
	Vars []string
}

func R(name string, vars ...string) Route {
	return Route{Name: name, Vars: vars}
}

// Get executes a GET request, decoding the JSON response into dest
// if it is not nil.
func (c *Client) Get(ctx context.Context, dest interface{}, route Route) error {
	return c.methodWithResp(ctx, "GET", dest, route, nil)
}

// PostWithBody encodes body as JSON, and decodes the response into
// dest if it's not nil and the response isn't empty.
func (c *Client) PostWithBody(ctx context.Context, dest interface{}, route Route, body interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encoding request body")
	}
	return c.methodWithResp(ctx, "POST", dest, route, bytes.NewReader(bodyBytes))
}

// PostRaw sends an already encoded JSON body, and returns the
// response body as it is.
func (c *Client) PostRaw(ctx context.Context, route Route, body []byte) ([]byte, error) {
	resp, err := c.do(ctx, "POST", route, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	return respBytes, errors.Wrap(err, "reading response from server")
}

// Put sends body as it is, and returns the response body as text.
func (c *Client) Put(ctx context.Context, route Route, body string) (string, error) {
	resp, err := c.do(ctx, "PUT", route, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	return string(respBytes), errors.Wrap(err, "reading response from server")
}

// methodWithResp handles the request, as well as decoding the response
// into the provided destination. Note, the response will only be
// decoded into the dest if the len is > 0.
func (c *Client) methodWithResp(ctx context.Context, method string, dest interface{}, route Route, body io.Reader) error {
	resp, err := c.do(ctx, method, route, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	if dest == nil || len(respBytes) <= 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, dest); err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, route Route, body io.Reader) (*http.Response, error) {
	u, err := transport.MakeURL(c.endpoint, c.router, route.Name, route.Vars)
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)

	c.token.Set(req)
	req.Header.Set("Accept", "application/json")

	return c.executeRequest(req)
}

func (c *Client) executeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, transport.ErrorUnauthorized
	default:
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading response body of error")
		}
		// Use the content type to discriminate between `herr.Error`,
		// as sent by the proxy, and anything else
		if strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json") {
			var niceError herr.Error
			if err := json.Unmarshal(body, &niceError); err == nil && niceError.Err != nil {
				return nil, &niceError
			}
			// just JSON, not one of our own errors
		}
		return nil, &scheduler.CallError{
			Method:     req.Method,
			Target:     req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
}
