package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"

	"github.com/fluxcd/homeless/pkg/canary"
	"github.com/fluxcd/homeless/pkg/config"
	"github.com/fluxcd/homeless/pkg/deploy"
	"github.com/fluxcd/homeless/pkg/patch"
)

type deployOpts struct {
	*rootOpts
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deploy",
		Aliases: []string{"create"},
		Short:   "Plan and submit a job, and wait for its canaries.",
		Example: makeExample(
			"homeless deploy --env staging --task all --plan",
			"homeless deploy --env production --task api,worker-* --tag 1a2b3c4d",
			"homeless deploy --local --env dev --task all --table ./overrides",
		),
		RunE: opts.RunE,
	}
	fs := cmd.Flags()
	f := &opts.flags
	fs.StringVar(&f.Environment, "env", "", "environment to deploy to (DRONE_DEPLOY_TO)")
	fs.StringVar(&f.Job, "job", "", "name of the job template (target_job)")
	fs.StringVar(&f.Tasks, "task", "", `tasks to give the new version: "all", or a comma-separated list of names (target_task)`)
	fs.StringVar(&f.Tag, "tag", "", "the new version (container_tag); defaults to the first 8 characters of the commit")
	fs.BoolVar(&f.PlanOnly, "plan", false, "print the plan, and don't submit the job")
	fs.BoolVar(&f.AutoPromote, "promote", false, "promote the canaries as soon as they are ready")
	fs.StringVar(&f.Destination, "destination", "", "run the job in region:datacenter instead")
	fs.StringVar(&f.Templates, "templates", "", "directory holding job templates (default the working directory)")
	fs.StringVar(&f.NomadBinary, "nomad-bin", "", "path to the nomad binary used to render templates")
	fs.BoolVar(&f.LegacyNomad, "legacy-nomad", false, "render templates with `nomad run -output`, for nomad before 0.9")
	fs.StringVar(&f.Table, "table", "", "DynamoDB table of overrides; in local mode, a directory")
	fs.StringVar(&f.OverridesDir, "overrides-dir", "", "directory of override files")
	fs.StringVar(&f.OverridesDSN, "overrides-dsn", "", "database of overrides (postgres://, sqlite:// or file:)")
	fs.StringVar(&f.KVPrefix, "kv-prefix", "", "prefix of the keys active versions are published under")
	fs.StringVar(&f.RedisAddr, "redis-addr", "", "also publish active versions to this redis server")
	fs.StringVar(&f.MemcacheAddr, "memcache-addr", "", "also publish active versions to these memcached servers (comma-separated)")
	addSchedulerFlags(fs, f)
	return cmd
}

func (opts *deployOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	c := opts.Config
	if err := c.Validate(config.OpDeploy); err != nil {
		return err
	}
	tasks, err := patch.ParseSelector(c.Tasks)
	if err != nil {
		return err
	}
	dest, err := config.ParseDestination(c.Destination)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(context.Background(), c.Timeout)
	defer cancel()

	comps := newComponents(c, opts.Logger)
	defer comps.Close()

	client, schedulerKV, err := comps.Scheduler()
	if err != nil {
		return err
	}
	store, err := comps.Overrides(ctx)
	if err != nil {
		return err
	}
	publisher, err := comps.Publisher(schedulerKV)
	if err != nil {
		return err
	}

	logger := log.With(opts.Logger, "component", "deploy")
	monitor, done := opts.newMonitor(client, logger)
	defer done()
	orchestrator := deploy.New(deploy.Config{
		Templates: comps.Templates(c.Job),
		Overrides: store,
		Scheduler: client,
		Monitor:   monitor,
		Logger:    logger,
		Out:       cmd.OutOrStdout(),
	})

	req := deploy.Request{
		Environment: c.Environment,
		Job:         c.Job,
		Tasks:       tasks,
		Tag:         c.Tag,
		PlanOnly:    c.PlanOnly,
		Destination: dest,
		Promote:     c.AutoPromote,
	}
	if publisher != nil {
		req.OnReady = deploy.PublishActiveTags(publisher, c.KVPrefix)
	}

	res, err := orchestrator.Deploy(ctx, req)
	done()
	if err != nil {
		return err
	}

	out := cmd.OutOrStderr()
	switch {
	case res.Planned:
		fmt.Fprintln(out, "Plan only; nothing was submitted.")
	case res.Promoted:
		fmt.Fprintf(out, "Promoted the canaries of deployment %s.\n", res.DeploymentID)
	case res.Ready:
		fmt.Fprintf(out, "Canaries of deployment %s are ready. To promote them, run\n\n    homeless promote --job %s\n\n", res.DeploymentID, c.Job)
	case res.Outcome == canary.OutcomeSuccessful:
		fmt.Fprintf(out, "Deployment %s was successful.\n", res.DeploymentID)
	default:
		fmt.Fprintf(out, "Submitted job %s (evaluation %s).\n", res.JobID, res.EvalID)
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
