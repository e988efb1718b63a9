package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/ec2"
	awslambda "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/fluxcd/homeless/pkg/awsauth"
	"github.com/fluxcd/homeless/pkg/config"
	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/jobspec"
	"github.com/fluxcd/homeless/pkg/kv"
	"github.com/fluxcd/homeless/pkg/overrides"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/scheduler/lambda"
	"github.com/fluxcd/homeless/pkg/scheduler/nomad"
	"github.com/fluxcd/homeless/pkg/scheduler/proxy"
)

const (
	localNomad  = "http://127.0.0.1:" + nomad.DefaultPort
	localConsul = "http://127.0.0.1:" + nomad.ConsulPort

	kvTimeout = 5 * time.Second
)

// components are the parts of a deployment, as chosen by the
// configuration. Anything that needs AWS credentials shares one base
// session, made on first use.
type components struct {
	config config.Config
	logger log.Logger

	sess    *session.Session
	closers []func() error
}

func newComponents(c config.Config, logger log.Logger) *components {
	return &components{config: c, logger: logger}
}

func (c *components) Close() {
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			c.logger.Log("err", err)
		}
	}
}

func (c *components) session() (*session.Session, error) {
	if c.sess != nil {
		return c.sess, nil
	}
	sess, err := awsauth.Session(c.config.Region)
	if err != nil {
		return nil, err
	}
	if c.config.Region == "" {
		region, err := awsauth.DetectRegion(sess)
		if err != nil {
			return nil, herr.ConfigurationError(errors.Wrap(err, "no region given (PLUGIN_REGION), and it can't be detected"))
		}
		sess = sess.Copy(&aws.Config{Region: aws.String(region)})
	}
	c.sess = sess
	return sess, nil
}

func (c *components) identity() awsauth.Identity {
	return awsauth.Identity{
		Role:         c.config.Role,
		Account:      c.config.Account,
		LocalAccount: c.config.LocalAccount,
		Commit:       c.config.Commit,
		Build:        c.config.Build,
	}
}

// Scheduler returns the client through which to reach the scheduler,
// and the key-value store that comes with it, if any.
func (c *components) Scheduler() (scheduler.Client, kv.Publisher, error) {
	var (
		client scheduler.Client
		store  kv.Publisher
	)
	switch {
	case c.config.Local:
		nomadAddr, consulAddr := c.config.NomadAddr, c.config.ConsulAddr
		if nomadAddr == "" {
			nomadAddr = localNomad
		}
		if consulAddr == "" {
			consulAddr = localConsul
		}
		c.logger.Log("scheduler", "local", "nomad", nomadAddr, "consul", consulAddr)
		h := &proxy.Handler{
			Scheduler: nomad.New(nil, nomadAddr, c.config.NomadToken),
			KV:        nomad.NewConsul(nil, consulAddr, c.config.ConsulToken),
			Logger:    log.With(c.logger, "component", "proxy"),
		}
		l := lambda.New(lambda.InvokerFunc(h.Handle))
		client, store = l, l
	case c.config.ProxyURL != "":
		c.logger.Log("scheduler", "proxy", "url", c.config.ProxyURL)
		l := lambda.New(lambda.NewHTTPInvoker(nil, c.config.ProxyURL))
		client, store = l, l
	case c.config.LambdaFunc != "":
		sess, err := c.session()
		if err != nil {
			return nil, nil, err
		}
		c.logger.Log("scheduler", "lambda", "function", c.config.LambdaFunc, "account", c.config.Account)
		l := lambda.New(lambda.Function{
			API:  awslambda.New(c.identity().Target(sess, "lambda")),
			Name: c.config.LambdaFunc,
		})
		client, store = l, l
	case c.config.NomadAddr != "":
		c.logger.Log("scheduler", "nomad", "addr", c.config.NomadAddr)
		client = nomad.New(nil, c.config.NomadAddr, c.config.NomadToken)
		if c.config.ConsulAddr != "" {
			store = nomad.NewConsul(nil, c.config.ConsulAddr, c.config.ConsulToken)
		}
	default:
		return nil, nil, herr.ConfigurationError(errors.New("no scheduler configured"))
	}

	client = scheduler.NewErrorLoggingClient(client, log.With(c.logger, "component", "scheduler"))
	client = scheduler.Instrument(client)
	return client, store, nil
}

// Overrides returns the store to read overrides from.
func (c *components) Overrides(ctx context.Context) (overrides.Store, error) {
	switch {
	case c.config.OverridesDSN != "":
		driver, dsn, err := parseDSN(c.config.OverridesDSN)
		if err != nil {
			return nil, err
		}
		s, err := overrides.NewSQLStore(driver, dsn)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, s.Close)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		c.logger.Log("overrides", "sql", "driver", driver)
		return s, nil
	case c.config.OverridesDir != "":
		c.logger.Log("overrides", "files", "dir", c.config.OverridesDir)
		return &overrides.FileStore{Dir: c.config.OverridesDir}, nil
	case c.config.Table != "":
		sess, err := c.session()
		if err != nil {
			return nil, err
		}
		c.logger.Log("overrides", "dynamodb", "table", c.config.Table)
		return &overrides.DynamoStore{
			API:   dynamodb.New(c.identity().Local(sess, "dynamodb")),
			Table: c.config.Table,
		}, nil
	}
	return overrides.Nop{}, nil
}

// parseDSN takes the driver from the scheme of a DSN:
// `postgres://...` is given to lib/pq as is, and `sqlite://path` or
// `file:path` open a SQLite database.
func parseDSN(dsn string) (driver, rest string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return overrides.DriverPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return overrides.DriverSQLite, strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "file:"):
		return overrides.DriverSQLite, dsn, nil
	}
	return "", "", herr.ConfigurationError(errors.Errorf("unsupported overrides DSN %q; expected postgres://, sqlite:// or file:", dsn))
}

// Publisher returns where to publish active tags, or nil if there's
// nowhere.
func (c *components) Publisher(schedulerKV kv.Publisher) (kv.Publisher, error) {
	var all kv.Multi
	if schedulerKV != nil {
		all = append(all, schedulerKV)
	}
	if c.config.RedisAddr != "" {
		all = append(all, kv.NewRedisPublisher(kv.RedisConfig{
			Addr:    c.config.RedisAddr,
			Timeout: kvTimeout,
		}))
	}
	if c.config.MemcacheAddr != "" {
		m, err := kv.NewMemcachePublisher(kv.MemcacheConfig{Timeout: kvTimeout}, strings.Split(c.config.MemcacheAddr, ",")...)
		if err != nil {
			return nil, err
		}
		all = append(all, m)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return kv.Logging(all, log.With(c.logger, "component", "kv")), nil
}

// Templates returns the source of the job's base specification: a
// rendered `<job>.json` when there is one, otherwise `<job>.nomad`
// rendered by the nomad binary.
func (c *components) Templates(job string) jobspec.Loader {
	dir := c.config.Templates
	if dir == "" {
		dir = "."
	}
	if _, err := os.Stat(filepath.Join(dir, job+".json")); err == nil {
		return jobspec.File{Dir: dir}
	}
	return jobspec.NomadCLI{
		Binary: c.config.NomadBinary,
		Dir:    dir,
		Legacy: c.config.LegacyNomad,
	}
}

// Discover finds a Nomad server, and a Consul server, from the tags of
// EC2 instances in the session's account.
func (c *components) Discover(ctx context.Context) (nomadAddr, consulAddr string, err error) {
	sess, err := c.session()
	if err != nil {
		return "", "", err
	}
	api := ec2.New(sess)
	n, err := nomad.Discover(ctx, api, nomad.DefaultNomadTagName, nomad.DefaultNomadTagValue)
	if err != nil {
		return "", "", err
	}
	cs, err := nomad.Discover(ctx, api, nomad.DefaultConsulTagName, nomad.DefaultConsulTagValue)
	if err != nil {
		return "", "", err
	}
	return nomad.Endpoint(n, nomad.DefaultPort), nomad.Endpoint(cs, nomad.ConsulPort), nil
}
