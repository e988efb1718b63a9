// Package jobspec loads the base specification of a job.
package jobspec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/spec"
)

const DefaultNomadBinary = "/usr/bin/nomad"

type Loader interface {
	Load(ctx context.Context, job string) (spec.Specification, error)
}

func unknownJob(job, file string) error {
	return herr.ConfigurationError(errors.Errorf("unknown target job %s; expecting file %q to exist", job, file))
}

// NomadCLI renders `<job>.nomad` in Dir to JSON with the nomad
// command.
type NomadCLI struct {
	Binary string
	Dir    string
	// Use `nomad run -output`, for versions of nomad before 0.9
	Legacy bool
}

func (n NomadCLI) args(file string) []string {
	if n.Legacy {
		return []string{"run", "-output", file}
	}
	return []string{"job", "run", "-output", file}
}

func (n NomadCLI) Load(ctx context.Context, job string) (spec.Specification, error) {
	file := job + ".nomad"
	if _, err := os.Stat(filepath.Join(n.Dir, file)); os.IsNotExist(err) {
		return spec.Specification{}, unknownJob(job, file)
	}

	binary := n.Binary
	if binary == "" {
		binary = DefaultNomadBinary
	}
	args := n.args(file)
	c := exec.CommandContext(ctx, binary, args...)
	c.Dir = n.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return spec.Specification{}, errors.Wrapf(ctx.Err(), "running %s %s", binary, strings.Join(args, " "))
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%s, full output:\n %s", err, msg)
		}
		return spec.Specification{}, errors.Wrapf(err, "rendering %s", file)
	}

	s, err := spec.Parse(&stdout)
	return s, errors.Wrapf(err, "decoding output of %s %s", binary, strings.Join(args, " "))
}

// File reads `<job>.json` in Dir, which holds a job already rendered
// to JSON.
type File struct {
	Dir string
}

func (f File) Load(ctx context.Context, job string) (spec.Specification, error) {
	file := job + ".json"
	r, err := os.Open(filepath.Join(f.Dir, file))
	if os.IsNotExist(err) {
		return spec.Specification{}, unknownJob(job, file)
	}
	if err != nil {
		return spec.Specification{}, errors.Wrapf(err, "opening %s", file)
	}
	defer r.Close()
	s, err := spec.Parse(r)
	return s, errors.Wrapf(err, "decoding %s", file)
}
