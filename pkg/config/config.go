// config is the package containing configuration for homeless, as
// given by a config file, a Drone plugin environment and the command
// line.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	herr "github.com/fluxcd/homeless/pkg/errors"
)

const (
	ConfigVersion = "v1"

	DefaultRole        = "ci"
	DefaultJob         = "jobspec"
	DefaultNomadBinary = "/usr/bin/nomad"
	DefaultKVPrefix    = "homeless"
)

type Config struct {
	// This is expected to be present in a config file (and will not
	// correspond to a flag). The value determines how the config file
	// is interpreted: for now, if it is not equal to ConfigVersion
	// above, it is considered an invalid configuration.
	Version string `yaml:"homelessConfigVersion"`

	Environment string `yaml:"environment"`
	Job         string `yaml:"job"`
	Tasks       string `yaml:"tasks"`
	Tag         string `yaml:"tag"`
	PlanOnly    bool   `yaml:"plan"`
	AutoPromote bool   `yaml:"autoPromote"`
	Destination string `yaml:"destination"`

	// Where to reach the scheduler: through a function, a proxy
	// served over HTTP, or directly.
	LambdaFunc  string `yaml:"lambdaFunc"`
	ProxyURL    string `yaml:"proxyUrl"`
	NomadAddr   string `yaml:"nomadAddr"`
	NomadToken  string `yaml:"nomadToken"`
	ConsulAddr  string `yaml:"consulAddr"`
	ConsulToken string `yaml:"consulToken"`

	// Where to find overrides
	Table        string `yaml:"table"`
	OverridesDir string `yaml:"overridesDir"`
	OverridesDSN string `yaml:"overridesDsn"`

	// Where to publish active versions
	KVPrefix     string `yaml:"kvPrefix"`
	RedisAddr    string `yaml:"redisAddr"`
	MemcacheAddr string `yaml:"memcacheAddr"`

	Account      string `yaml:"account"`
	LocalAccount string `yaml:"localAccount"`
	Region       string `yaml:"region"`
	Role         string `yaml:"role"`
	Commit       string `yaml:"commit"`
	Build        string `yaml:"build"`

	Templates   string `yaml:"templates"`
	NomadBinary string `yaml:"nomadBinary"`
	LegacyNomad bool   `yaml:"legacyNomad"`

	Debug       bool          `yaml:"debug"`
	Local       bool          `yaml:"local"`
	Pushgateway string        `yaml:"pushgateway"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

func Defaults() Config {
	return Config{
		Role:        DefaultRole,
		Job:         DefaultJob,
		NomadBinary: DefaultNomadBinary,
		KVPrefix:    DefaultKVPrefix,
	}
}

// ReadFile reads a config file. A missing file is an error; an empty
// path gives an empty Config.
func ReadFile(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return c, herr.ConfigurationError(errors.Wrapf(err, "reading config file"))
	}
	if err := yaml.UnmarshalStrict(bs, &c); err != nil {
		return c, herr.ConfigurationError(errors.Wrapf(err, "parsing config file %s", path))
	}
	if c.Version != ConfigVersion {
		return c, herr.ConfigurationError(fmt.Errorf("config file is expected to include `homelessConfigVersion: %s`", ConfigVersion))
	}
	return c, nil
}

// FromEnv reads the environment a Drone plugin step is given.
func FromEnv(getenv func(string) string) Config {
	isTrue := func(names ...string) bool {
		for _, n := range names {
			if getenv(n) == "true" {
				return true
			}
		}
		return false
	}
	first := func(names ...string) string {
		for _, n := range names {
			if v := getenv(n); v != "" {
				return v
			}
		}
		return ""
	}

	env := getenv("DRONE_DEPLOY_TO")
	account := getenv("ACCOUNT_NUMBER")
	if account == "" && env != "" {
		account = getenv("ACCOUNT_NUMBER_" + strings.ToUpper(env))
	}

	return Config{
		Environment:  env,
		Job:          getenv("target_job"),
		Tasks:        getenv("target_task"),
		Tag:          getenv("container_tag"),
		PlanOnly:     isTrue("plan"),
		AutoPromote:  isTrue("PLUGIN_AUTO_PROMOTE", "auto_promote"),
		Destination:  getenv("destination"),
		LambdaFunc:   getenv("PLUGIN_LAMBDA_FUNC"),
		ProxyURL:     getenv("PLUGIN_PROXY_URL"),
		NomadAddr:    getenv("NOMAD_ADDR"),
		NomadToken:   getenv("NOMAD_TOKEN"),
		ConsulAddr:   getenv("CONSUL_HTTP_ADDR"),
		ConsulToken:  getenv("CONSUL_HTTP_TOKEN"),
		Table:        getenv("PLUGIN_DYNAMODB_TABLE"),
		OverridesDir: getenv("PLUGIN_OVERRIDES_DIR"),
		OverridesDSN: getenv("PLUGIN_OVERRIDES_DSN"),
		KVPrefix:     getenv("PLUGIN_KV_PREFIX"),
		RedisAddr:    getenv("PLUGIN_REDIS_ADDR"),
		MemcacheAddr: getenv("PLUGIN_MEMCACHE_ADDR"),
		Account:      account,
		LocalAccount: getenv("LOCAL_ACCOUNT_NUMBER"),
		Region:       getenv("PLUGIN_REGION"),
		Role:         getenv("PLUGIN_CI_ROLE"),
		Commit:       getenv("DRONE_COMMIT"),
		Build:        getenv("DRONE_BUILD_NUMBER"),
		Templates:    getenv("PLUGIN_TEMPLATES"),
		NomadBinary:  first("NOMAD_BIN_PATH", "PLUGIN_NOMAD_BIN_PATH"),
		Debug:        isTrue("PLUGIN_DEBUG", "debug"),
		Local:        isTrue("LOCAL_MODE"),
		Pushgateway:  getenv("PLUGIN_PUSHGATEWAY"),
	}
}

// Load layers, in increasing precedence, the defaults, the config
// file at path (if any), the environment and the flags given.
func Load(path string, getenv func(string) string, flags Config) (Config, error) {
	c := Defaults()
	file, err := ReadFile(path)
	if err != nil {
		return c, err
	}
	for _, layer := range []Config{file, FromEnv(getenv), flags} {
		if err := mergo.Merge(&c, layer, mergo.WithOverride); err != nil {
			return c, errors.Wrap(err, "combining configuration")
		}
	}
	if c.Tag == "" && c.Commit != "" {
		c.Tag = c.Commit
		if len(c.Tag) > 8 {
			c.Tag = c.Tag[:8]
		}
	}
	// In local mode, the table is a directory of override files
	if c.Local && c.OverridesDir == "" && c.OverridesDSN == "" {
		c.OverridesDir = c.Table
	}
	return c, nil
}

// Getenv is os.Getenv, for passing to Load.
var Getenv = os.Getenv

// Destination is where to run the job, overriding the region and
// datacenter in its template.
type Destination struct {
	Region     string
	Datacenter string
}

// ParseDestination parses `region:datacenter`. An empty string means
// no destination.
func ParseDestination(s string) (*Destination, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, herr.ConfigurationError(fmt.Errorf(`malformed destination %q; expected format "region:datacenter"`, s))
	}
	return &Destination{Region: parts[0], Datacenter: parts[1]}, nil
}

// Operation names what the configuration will be used for, which
// decides what is required of it.
type Operation string

const (
	OpDeploy  Operation = "deploy"
	OpPromote Operation = "promote"
	OpProxy   Operation = "proxy"
)

// Validate reports the settings missing for op, all at once.
func (c Config) Validate(op Operation) error {
	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch op {
	case OpDeploy, OpPromote:
		require(c.Job, "job (target_job)")
		if !c.Local && c.LambdaFunc == "" && c.ProxyURL == "" && c.NomadAddr == "" {
			missing = append(missing, "a scheduler (PLUGIN_LAMBDA_FUNC, a proxy URL or NOMAD_ADDR)")
		}
		if c.LambdaFunc != "" && !c.Local {
			require(c.Account, "account (ACCOUNT_NUMBER or ACCOUNT_NUMBER_<ENVIRONMENT>)")
			require(c.Commit, "commit (DRONE_COMMIT)")
			require(c.Build, "build (DRONE_BUILD_NUMBER)")
		}
	case OpProxy:
		require(c.NomadAddr, "nomad address (NOMAD_ADDR)")
	}

	if op == OpDeploy {
		require(c.Environment, "environment (DRONE_DEPLOY_TO)")
		require(c.Tasks, "tasks (target_task)")
		require(c.Tag, "tag (container_tag or DRONE_COMMIT)")
		if c.Table == "" && c.OverridesDir == "" && c.OverridesDSN == "" {
			missing = append(missing, "overrides (PLUGIN_DYNAMODB_TABLE, an overrides directory or DSN)")
		}
		if c.Table != "" && !c.Local && c.OverridesDir == "" && c.OverridesDSN == "" {
			require(c.Account, "account (ACCOUNT_NUMBER or ACCOUNT_NUMBER_<ENVIRONMENT>)")
		}
		if _, err := ParseDestination(c.Destination); err != nil {
			return err
		}
	}

	if len(missing) > 0 {
		return herr.ConfigurationError(fmt.Errorf("required parameters are not set: %s", strings.Join(dedupe(missing), ", ")))
	}
	return nil
}

func dedupe(ss []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
