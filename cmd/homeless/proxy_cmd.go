package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fluxcd/homeless/pkg/config"
	"github.com/fluxcd/homeless/pkg/kv"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/scheduler/nomad"
	"github.com/fluxcd/homeless/pkg/scheduler/proxy"
)

type proxyOpts struct {
	*rootOpts
	listenAddr string
	discover   bool
}

func newProxy(parent *rootOpts) *proxyOpts {
	return &proxyOpts{rootOpts: parent}
}

func (opts *proxyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Relay scheduler requests from deployments that can't reach the scheduler themselves.",
		Example: makeExample(
			"homeless proxy --nomad-addr http://nomad.service.consul:4646 --consul-addr http://consul.service.consul:8500",
			"homeless proxy --discover --region eu-west-1",
		),
		RunE: opts.RunE,
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.listenAddr, "listen", "l", ":8080", "listen address for deployments")
	fs.BoolVar(&opts.discover, "discover", false, "find Nomad and Consul servers from the tags of EC2 instances")
	fs.StringVar(&opts.flags.NomadAddr, "nomad-addr", "", "address of a Nomad agent (NOMAD_ADDR)")
	fs.StringVar(&opts.flags.ConsulAddr, "consul-addr", "", "address of a Consul agent (CONSUL_HTTP_ADDR)")
	fs.StringVar(&opts.flags.Region, "region", "", "AWS region, when discovering servers (PLUGIN_REGION)")
	return cmd
}

func (opts *proxyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	c := opts.Config
	logger := opts.Logger
	comps := newComponents(c, logger)

	switch {
	case opts.discover:
		var err error
		c.NomadAddr, c.ConsulAddr, err = comps.Discover(context.Background())
		if err != nil {
			return err
		}
		logger.Log("discovered", "servers", "nomad", c.NomadAddr, "consul", c.ConsulAddr)
	case c.Local && c.NomadAddr == "":
		c.NomadAddr = localNomad
		if c.ConsulAddr == "" {
			c.ConsulAddr = localConsul
		}
	}
	if err := c.Validate(config.OpProxy); err != nil {
		return err
	}

	var client scheduler.Client
	{
		client = nomad.New(nil, c.NomadAddr, c.NomadToken)
		client = scheduler.NewErrorLoggingClient(client, log.With(logger, "component", "scheduler"))
		client = scheduler.Instrument(client)
	}
	var store kv.Publisher
	if c.ConsulAddr != "" {
		store = kv.Logging(nomad.NewConsul(nil, c.ConsulAddr, c.ConsulToken), log.With(logger, "component", "kv"))
	}
	handler := &proxy.Handler{
		Scheduler: client,
		KV:        store,
		Logger:    log.With(logger, "component", "proxy"),
	}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	go func() {
		logger.Log("addr", opts.listenAddr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", proxy.NewHandler(handler, proxy.NewRouter()))
		errc <- http.ListenAndServe(opts.listenAddr, mux)
	}()

	logger.Log("exit", <-errc)
	return nil
}
