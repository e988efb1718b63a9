package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/scheduler/mock"
	"github.com/fluxcd/homeless/pkg/scheduler/proxy"
	"github.com/fluxcd/homeless/pkg/spec"
)

// run executes the command line given, with env as the whole
// environment.
func run(env map[string]string, args ...string) (string, string, error) {
	root := newRoot()
	root.getenv = func(k string) string { return env[k] }
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.stderr = stderr

	cmd := root.Command()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	_, err := cmd.ExecuteC()
	return stdout.String(), stderr.String(), err
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"deploy", "extra"},
		{"promote", "extra"},
		{"deploy", "--no-such-flag"},
		{"version", "extra"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, _, err := run(nil, args...)
			require.Error(t, err)
			_, ok := err.(usageError)
			assert.True(t, ok, "expected a usage error, got %T: %v", err, err)
		})
	}
}

func TestDeployMissingSettings(t *testing.T) {
	_, _, err := run(nil, "deploy")
	require.Error(t, err)
	assert.True(t, herr.IsConfiguration(err))
	for _, name := range []string{"DRONE_DEPLOY_TO", "target_task", "a scheduler"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestDeployBadDestination(t *testing.T) {
	_, _, err := run(nil, "deploy", "--env", "dev", "--task", "all", "--tag", "v2",
		"--nomad-addr", "http://127.0.0.1:1", "--overrides-dir", ".", "--destination", "eu-west-1")
	assert.True(t, herr.IsConfiguration(err))
}

func TestBadConfigFile(t *testing.T) {
	_, _, err := run(nil, "--config", "/does/not/exist.yaml", "version")
	assert.True(t, herr.IsConfiguration(err))
}

func TestVersionCommand(t *testing.T) {
	for _, v := range []string{"v1.0.0", "v2.0.0"} {
		t.Run(v, func(t *testing.T) {
			version = v
			defer func() { version = "" }()
			out, _, err := run(nil, "version")
			require.NoError(t, err)
			assert.Equal(t, v, strings.TrimRight(out, "\n"))
		})
	}
}

func TestHumane(t *testing.T) {
	placement := humane(fmt.Errorf("wrapped: %w", &scheduler.PlacementFailureError{Job: "api"}))
	assert.Equal(t, herr.Placement, placement.Type)

	call := humane(&scheduler.CallError{Method: "Submit", Target: "http://nomad", StatusCode: 409, Body: "index mismatch"})
	assert.Equal(t, herr.Scheduler, call.Type)
	assert.Contains(t, call.Help, "index mismatch")

	timeout := humane(context.DeadlineExceeded)
	assert.Equal(t, herr.Deployment, timeout.Type)

	config := herr.ConfigurationError(fmt.Errorf("no tasks"))
	assert.Equal(t, config, humane(config))

	assert.Equal(t, herr.Server, humane(fmt.Errorf("boom")).Type)
}

func TestParseDSN(t *testing.T) {
	for _, c := range []struct {
		dsn, driver, rest string
	}{
		{"postgres://u@db/overrides", "postgres", "postgres://u@db/overrides"},
		{"sqlite:///tmp/overrides.db", "sqlite", "/tmp/overrides.db"},
		{"file:overrides.db?cache=shared", "sqlite", "file:overrides.db?cache=shared"},
	} {
		driver, rest, err := parseDSN(c.dsn)
		require.NoError(t, err)
		assert.Equal(t, c.driver, driver)
		assert.Equal(t, c.rest, rest)
	}
	_, _, err := parseDSN("mysql://db")
	assert.True(t, herr.IsConfiguration(err))
}

type recorder struct {
	sync.Mutex
	puts map[string]string
}

func (r *recorder) Put(ctx context.Context, key, value string) error {
	r.Lock()
	defer r.Unlock()
	r.puts[key] = value
	return nil
}

const job = `{"Job": {
  "ID": "api",
  "Name": "api",
  "Update": {"Canary": 1},
  "TaskGroups": [{
    "Name": "web",
    "Tasks": [{"Name": "server", "Driver": "docker", "Config": {"image": "app:1"}}]
  }]
}}`

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// Deploy through a proxy, which is how a deployment reaches a
// scheduler it can't talk to directly.
func TestDeployThroughProxy(t *testing.T) {
	dir, err := os.MkdirTemp("", "homeless-cmd")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	writeFile(t, filepath.Join(dir, "api.json"), job)
	writeFile(t, filepath.Join(dir, "staging_api.yaml"), "overrides:\n  TaskGroups.*:\n    Count: 2\n")

	var submitted *spec.Map
	m := &mock.Client{
		PlanAnswer: scheduler.PlanResponse{
			Diff:           scheduler.JobDiff{ID: "api", Type: "Edited"},
			JobModifyIndex: 7,
		},
		SubmitArgTest: func(job *spec.Map, index scheduler.ModifyIndex) error {
			submitted = job
			if index != 7 {
				return fmt.Errorf("expected index 7, got %d", index)
			}
			return nil
		},
		SubmitAnswer:     scheduler.SubmitResponse{EvalID: "eval-1"},
		EvaluationAnswer: scheduler.Evaluation{ID: "eval-1", DeploymentID: "deploy-1"},
		DeploymentAnswer: scheduler.Deployment{
			ID:     "deploy-1",
			Status: scheduler.StatusRunning,
			TaskGroups: map[string]scheduler.DeploymentState{
				"web": {DesiredTotal: 2, DesiredCanaries: 1, PlacedCanaries: []string{"a"}, PlacedAllocs: 1, HealthyAllocs: 2},
			},
		},
	}
	kv := &recorder{puts: map[string]string{}}
	server := httptest.NewServer(proxy.NewHandler(&proxy.Handler{Scheduler: m, KV: kv}, proxy.NewRouter()))
	defer server.Close()

	env := map[string]string{
		"DRONE_DEPLOY_TO":  "staging",
		"DRONE_COMMIT":     "0123456789abcdef",
		"target_job":       "api",
		"target_task":      "all",
		"PLUGIN_PROXY_URL": server.URL,
	}
	out, stderr, err := run(env, "deploy",
		"--templates", dir,
		"--overrides-dir", dir,
		"--interval", "1ms")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, `Job: "api"`)
	assert.Equal(t, []string{"Plan", "Submit", "Evaluation", "Deployment"}, m.Calls())
	require.NotNil(t, submitted)
	groups := spec.Specification{Job: submitted}.TaskGroups()
	require.Len(t, groups, 1)
	count, _ := groups[0].Get("Count")
	assert.EqualValues(t, 2, spec.Normalize(count))
	assert.Equal(t, map[string]string{"homeless/api/web/server": "01234567"}, kv.puts)
}

func TestPromoteThroughProxy(t *testing.T) {
	ready := scheduler.Deployment{
		ID:     "deploy-1",
		Status: scheduler.StatusRunning,
		TaskGroups: map[string]scheduler.DeploymentState{
			"web": {DesiredTotal: 1, DesiredCanaries: 1, PlacedCanaries: []string{"a"}, PlacedAllocs: 1, HealthyAllocs: 1},
		},
	}
	for _, extra := range [][]string{nil, {"--progress"}} {
		m := &mock.Client{LatestDeploymentAnswer: ready, DeploymentAnswer: ready}
		server := httptest.NewServer(proxy.NewHandler(&proxy.Handler{Scheduler: m}, proxy.NewRouter()))
		defer server.Close()

		args := append([]string{"promote", "--job", "api", "--proxy-url", server.URL}, extra...)
		_, stderr, err := run(nil, args...)
		require.NoError(t, err)
		assert.Contains(t, stderr, "Promoted the canaries of deployment deploy-1")
		assert.Equal(t, []string{"deploy-1"}, m.Promoted)
	}
}
