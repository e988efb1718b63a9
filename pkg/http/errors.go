package http

import (
	"errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
)

var ErrorUnauthorized = &herr.Error{
	Type: herr.Scheduler,
	Help: `The request failed authentication

This most likely means you have a missing or incorrect ACL token.
Please make sure you supply one, either by setting the environment
variable NOMAD_TOKEN (or CONSUL_HTTP_TOKEN for the key-value store),
or using the corresponding argument with homeless.
`,
	Err: errors.New("request failed authentication"),
}

func MakeAPINotFound(path string) *herr.Error {
	return &herr.Error{
		Type: herr.Server,
		Help: `The API endpoint requested is not supported by this server.

This indicates that the client and the proxy it is talking to are
different versions. If you still have problems, please file an issue at

    https://github.com/fluxcd/homeless/issues

mentioning what you were attempting to do, and include this path:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}
