package main

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/go-kit/kit/log"

	"github.com/fluxcd/homeless/pkg/canary"
	"github.com/fluxcd/homeless/pkg/scheduler"
)

const progressTemplate = `Healthy allocations {{counters . }} {{bar . }} {{percent . }} {{etime . "%s"}}`

// newMonitor makes the monitor that deploy and promote wait with. With
// --progress, it draws a bar of healthy allocations on stderr; call
// the returned func once done waiting.
func (opts *rootOpts) newMonitor(client scheduler.Client, logger log.Logger) (*canary.Monitor, func()) {
	monitor := canary.NewMonitor(client, logger)
	if opts.Config.Interval > 0 {
		monitor.Interval = opts.Config.Interval
	}
	if !opts.progress {
		return monitor, func() {}
	}

	var bar *pb.ProgressBar
	monitor.Progress = func(d scheduler.Deployment) {
		healthy, total := canary.Healthy(d)
		if bar == nil {
			bar = pb.New(total)
			bar.SetTemplateString(progressTemplate)
			bar.SetWriter(opts.errw)
			bar.Start()
		}
		bar.SetTotal(int64(total))
		bar.SetCurrent(int64(healthy))
	}
	return monitor, func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}
}
