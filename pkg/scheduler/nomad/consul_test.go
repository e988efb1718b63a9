package nomad

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsulPut(t *testing.T) {
	var method, path, token, body string
	answer := "true"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, token = r.Method, r.URL.Path, r.Header.Get(ConsulTokenHeader)
		bs, _ := io.ReadAll(r.Body)
		body = string(bs)
		w.Write([]byte(answer))
	}))
	defer srv.Close()

	c := NewConsul(nil, srv.URL, "acl")
	require.NoError(t, c.Put(context.Background(), "/homeless/helloworld/api/server", "v1.2.3"))
	assert.Equal(t, "PUT", method)
	assert.Equal(t, "/v1/kv/homeless/helloworld/api/server", path)
	assert.Equal(t, "acl", token)
	assert.Equal(t, "v1.2.3", body)

	answer = "false"
	assert.Error(t, c.Put(context.Background(), "homeless/x", "y"))
}
