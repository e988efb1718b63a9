package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herr "github.com/fluxcd/homeless/pkg/errors"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

var droneEnv = map[string]string{
	"DRONE_DEPLOY_TO":           "production",
	"target_task":               "server,worker-*",
	"PLUGIN_LAMBDA_FUNC":        "nomad-proxy",
	"PLUGIN_DYNAMODB_TABLE":     "deployments",
	"DRONE_COMMIT":              "0123abcd4567ef",
	"DRONE_BUILD_NUMBER":        "42",
	"ACCOUNT_NUMBER_PRODUCTION": "111111111111",
	"destination":               "eu-west-1:dc2",
	"plan":                      "true",
	"PLUGIN_DEBUG":              "true",
}

func TestLoadFromEnv(t *testing.T) {
	c, err := Load("", envOf(droneEnv), Config{})
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "server,worker-*", c.Tasks)
	assert.Equal(t, "111111111111", c.Account)
	assert.Equal(t, "0123abcd", c.Tag, "tag defaults to the short commit")
	assert.Equal(t, DefaultJob, c.Job)
	assert.Equal(t, DefaultRole, c.Role)
	assert.Equal(t, DefaultNomadBinary, c.NomadBinary)
	assert.True(t, c.PlanOnly)
	assert.True(t, c.Debug)
	assert.NoError(t, c.Validate(OpDeploy))
}

func TestAccountNumberPrecedence(t *testing.T) {
	env := map[string]string{}
	for k, v := range droneEnv {
		env[k] = v
	}
	env["ACCOUNT_NUMBER"] = "222222222222"
	assert.Equal(t, "222222222222", FromEnv(envOf(env)).Account)
}

func TestLoadPrecedence(t *testing.T) {
	dir, err := os.MkdirTemp("", "config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "homeless.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`homelessConfigVersion: v1
job: from-file
role: deployer
region: us-east-1
timeout: 15m
`), 0644))

	c, err := Load(path, envOf(map[string]string{"target_job": "from-env", "PLUGIN_REGION": "eu-west-1"}), Config{Job: "from-flags", Tag: "v1.2.3"})
	require.NoError(t, err)
	assert.Equal(t, "from-flags", c.Job)
	assert.Equal(t, "eu-west-1", c.Region)
	assert.Equal(t, "deployer", c.Role)
	assert.Equal(t, "v1.2.3", c.Tag)
	assert.Equal(t, 15*time.Minute, c.Timeout)
}

func TestReadFileErrors(t *testing.T) {
	dir, err := os.MkdirTemp("", "config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	_, err = ReadFile(filepath.Join(dir, "missing.yaml"))
	assert.True(t, herr.IsConfiguration(err))

	unversioned := filepath.Join(dir, "unversioned.yaml")
	require.NoError(t, os.WriteFile(unversioned, []byte("job: x\n"), 0644))
	_, err = ReadFile(unversioned)
	assert.True(t, herr.IsConfiguration(err))

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("homelessConfigVersion: v1\njobb: x\n"), 0644))
	_, err = ReadFile(unknown)
	assert.True(t, herr.IsConfiguration(err))
}

func TestLocalModeTableIsDirectory(t *testing.T) {
	c, err := Load("", envOf(map[string]string{
		"LOCAL_MODE":            "true",
		"PLUGIN_DYNAMODB_TABLE": "./overrides",
		"DRONE_DEPLOY_TO":       "dev",
		"target_task":           "all",
		"container_tag":         "latest",
	}), Config{})
	require.NoError(t, err)
	assert.Equal(t, "./overrides", c.OverridesDir)
	assert.NoError(t, c.Validate(OpDeploy))
}

func TestValidate(t *testing.T) {
	err := Defaults().Validate(OpDeploy)
	require.Error(t, err)
	assert.True(t, herr.IsConfiguration(err))
	for _, name := range []string{"DRONE_DEPLOY_TO", "target_task", "a scheduler", "overrides"} {
		assert.Contains(t, err.Error(), name)
	}

	c := Defaults()
	c.NomadAddr = "http://127.0.0.1:4646"
	assert.NoError(t, c.Validate(OpPromote))
	assert.NoError(t, c.Validate(OpProxy))

	c = Defaults()
	c.LambdaFunc = "nomad-proxy"
	err = c.Validate(OpPromote)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCOUNT_NUMBER")

	c, err = Load("", envOf(droneEnv), Config{Destination: "nowhere"})
	require.NoError(t, err)
	assert.True(t, herr.IsConfiguration(c.Validate(OpDeploy)))
}

func TestParseDestination(t *testing.T) {
	d, err := ParseDestination("eu-west-1:dc2")
	require.NoError(t, err)
	assert.Equal(t, &Destination{Region: "eu-west-1", Datacenter: "dc2"}, d)

	d, err = ParseDestination("")
	assert.NoError(t, err)
	assert.Nil(t, d)

	for _, bad := range []string{"eu-west-1", ":dc2", "eu-west-1:"} {
		_, err := ParseDestination(bad)
		assert.True(t, herr.IsConfiguration(err), bad)
	}
}
