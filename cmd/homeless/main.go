package main

import (
	"fmt"
	"os"

	"github.com/fluxcd/homeless/pkg/metrics"
)

func main() {
	root := newRoot()
	rootCmd := root.Command()

	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		switch err.(type) {
		case usageError:
			cmd.PrintErrln(err)
			cmd.PrintErrln("")
			cmd.PrintErrln(cmd.UsageString())
		default:
			fmt.Fprint(os.Stderr, humane(err).Help)
		}
	}

	if url := root.Config.Pushgateway; url != "" {
		groupings := map[string]string{}
		if env := root.Config.Environment; env != "" {
			groupings[metrics.LabelEnvironment] = env
		}
		if err := metrics.Push(url, "homeless", groupings); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}

	if err != nil {
		os.Exit(1)
	}
}
