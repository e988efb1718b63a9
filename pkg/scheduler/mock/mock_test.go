package mock

import (
	"testing"

	"github.com/fluxcd/homeless/pkg/scheduler"
)

// Just test that the mock does its job.
func TestMock(t *testing.T) {
	ClientTestBattery(t, func(mock scheduler.Client) scheduler.Client { return mock })
}
