package main

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/fluxcd/homeless/pkg/config"
)

func makeExample(examples ...string) string {
	var buf strings.Builder
	for _, example := range examples {
		buf.WriteString("  " + example + "\n")
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// addSchedulerFlags adds the flags saying how to reach the scheduler,
// and who to be when doing so.
func addSchedulerFlags(fs *pflag.FlagSet, f *config.Config) {
	fs.StringVar(&f.LambdaFunc, "lambda", "", "name of the function relaying to the scheduler (PLUGIN_LAMBDA_FUNC)")
	fs.StringVar(&f.ProxyURL, "proxy-url", "", "URL of a `homeless proxy` relaying to the scheduler")
	fs.StringVar(&f.NomadAddr, "nomad-addr", "", "address of a Nomad agent, to talk to directly (NOMAD_ADDR)")
	fs.StringVar(&f.ConsulAddr, "consul-addr", "", "address of a Consul agent, to publish active versions to (CONSUL_HTTP_ADDR)")
	fs.StringVar(&f.Account, "account", "", "AWS account being deployed to (ACCOUNT_NUMBER)")
	fs.StringVar(&f.LocalAccount, "local-account", "", "AWS account the build runs in, if not the one deployed to")
	fs.StringVar(&f.Region, "region", "", "AWS region (PLUGIN_REGION); detected when running on EC2")
	fs.StringVar(&f.Role, "role", "", "role to assume in each account (PLUGIN_CI_ROLE, default \""+config.DefaultRole+"\")")
	fs.StringVar(&f.Commit, "commit", "", "commit being deployed (DRONE_COMMIT)")
	fs.StringVar(&f.Build, "build", "", "build number (DRONE_BUILD_NUMBER)")
}
