// Package overrides fetches the per-environment override document of
// a job from wherever it is kept.
package overrides

import (
	"context"

	"github.com/fluxcd/homeless/pkg/spec"
)

// Store is implemented by each place overrides may be kept.
type Store interface {
	// Get returns the overrides for job in environment, or nil if
	// there are none.
	Get(ctx context.Context, job, environment string) (*spec.Map, error)
}

// Attribute names, shared by every store.
const (
	AttrJob         = "job"
	AttrEnvironment = "environment"
	AttrOverrides   = "overrides"
)

// Nop is a store without overrides.
type Nop struct{}

func (Nop) Get(ctx context.Context, job, environment string) (*spec.Map, error) {
	return nil, nil
}
