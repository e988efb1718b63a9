package kv

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
)

type memcacheSetter interface {
	Set(item *memcache.Item) error
}

// MemcachePublisher puts values in memcached. Keys may not contain
// spaces or control characters, and are limited to 250 bytes.
type MemcachePublisher struct {
	client memcacheSetter
	expiry time.Duration
}

// MemcacheConfig defines how a MemcachePublisher should be
// constructed. When Service is set, servers are found from the SRV
// records of Service at Host; otherwise the addresses given to
// NewMemcachePublisher are used.
type MemcacheConfig struct {
	Host         string
	Service      string
	Timeout      time.Duration
	MaxIdleConns int
	Expiry       time.Duration
}

func NewMemcachePublisher(config MemcacheConfig, addresses ...string) (*MemcachePublisher, error) {
	var servers memcache.ServerList
	if config.Service != "" {
		srvs, err := lookupSRV(config.Service, config.Host)
		if err != nil {
			return nil, errors.Wrapf(err, "setting memcache servers from SRV records for %s", config.Host)
		}
		addresses = srvs
	}
	if err := servers.SetServers(addresses...); err != nil {
		return nil, errors.Wrap(err, "setting memcache servers")
	}
	client := memcache.NewFromSelector(&servers)
	client.Timeout = config.Timeout
	client.MaxIdleConns = config.MaxIdleConns
	return &MemcachePublisher{client: client, expiry: config.Expiry}, nil
}

func (c *MemcachePublisher) Put(ctx context.Context, key, value string) error {
	if err := c.client.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(value),
		Expiration: int32(c.expiry.Seconds()),
	}); err != nil {
		return errors.Wrapf(err, "storing %q in memcache", key)
	}
	return nil
}

// lookupSRV finds memcache servers from SRV records. SRV priority &
// weight are ignored.
func lookupSRV(service, hostname string) ([]string, error) {
	_, addrs, err := net.LookupSRV(service, "tcp", hostname)
	if err != nil {
		return nil, err
	}
	var servers []string
	for _, srv := range addrs {
		servers = append(servers, fmt.Sprintf("%s:%d", srv.Target, srv.Port))
	}
	// ServerList deterministically maps keys to _index_ of the server list.
	// Since DNS returns records in different order each time, we sort to
	// guarantee best possible match between nodes.
	sort.Strings(servers)
	return servers, nil
}
