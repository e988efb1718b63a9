package main

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"

	"github.com/fluxcd/homeless/pkg/config"
	"github.com/fluxcd/homeless/pkg/deploy"
)

type promoteOpts struct {
	*rootOpts
}

func newPromote(parent *rootOpts) *promoteOpts {
	return &promoteOpts{rootOpts: parent}
}

func (opts *promoteOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote the canaries of a job's latest deployment, once they are ready.",
		Example: makeExample(
			"homeless promote --job api",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.flags.Job, "job", "", "name of the job (target_job)")
	addSchedulerFlags(cmd.Flags(), &opts.flags)
	return cmd
}

func (opts *promoteOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	c := opts.Config
	if err := c.Validate(config.OpPromote); err != nil {
		return err
	}

	ctx, cancel := withTimeout(context.Background(), c.Timeout)
	defer cancel()

	comps := newComponents(c, opts.Logger)
	defer comps.Close()
	client, _, err := comps.Scheduler()
	if err != nil {
		return err
	}

	logger := log.With(opts.Logger, "component", "promote")
	monitor, done := opts.newMonitor(client, logger)
	defer done()
	orchestrator := deploy.New(deploy.Config{
		Scheduler: client,
		Monitor:   monitor,
		Logger:    logger,
	})

	res, err := orchestrator.Promote(ctx, deploy.PromoteRequest{Job: c.Job})
	done()
	if err != nil {
		return err
	}
	if res.Promoted {
		fmt.Fprintf(cmd.OutOrStderr(), "Promoted the canaries of deployment %s.\n", res.DeploymentID)
	} else {
		fmt.Fprintf(cmd.OutOrStderr(), "Deployment %s finished without needing promotion.\n", res.DeploymentID)
	}
	return nil
}
