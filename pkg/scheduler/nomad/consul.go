package nomad

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	transport "github.com/fluxcd/homeless/pkg/http"
	"github.com/fluxcd/homeless/pkg/http/client"
)

const (
	ConsulPort        = "8500"
	ConsulTokenHeader = "X-Consul-Token"
	EnvConsulToken    = "CONSUL_HTTP_TOKEN"
	EnvConsulAddr     = "CONSUL_HTTP_ADDR"
)

// Consul writes keys to Consul's key-value store.
type Consul struct {
	http *client.Client
}

func NewConsul(c *http.Client, endpoint, token string) *Consul {
	return &Consul{
		http: client.New(c, transport.NewConsulRouter(), endpoint, client.Token{Header: ConsulTokenHeader, Value: token}),
	}
}

// Put sets key to value. Consul answers `true` on success, and
// `false` when the write was refused.
func (c *Consul) Put(ctx context.Context, key, value string) error {
	res, err := c.http.Put(ctx, client.R(transport.PutKV, "key", strings.TrimPrefix(key, "/")), value)
	if err != nil {
		return err
	}
	if strings.TrimSpace(res) == "false" {
		return errors.Errorf("consul refused to write key %q", key)
	}
	return nil
}
