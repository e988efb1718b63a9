package patch

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"

	herr "github.com/fluxcd/homeless/pkg/errors"
)

// SelectAll is the selector value that selects every task.
const SelectAll = "all"

// Selector chooses which tasks of a job get the new version.
type Selector struct {
	all      bool
	patterns []string
}

// ParseSelector reads either "all", or a comma-separated list of task
// names. Names may contain `*` wildcards.
func ParseSelector(s string) (Selector, error) {
	if strings.TrimSpace(s) == SelectAll {
		return Selector{all: true}, nil
	}
	var patterns []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			patterns = append(patterns, name)
		}
	}
	if len(patterns) == 0 {
		return Selector{}, herr.ConfigurationError(errors.Errorf("no tasks selected by %q; expected %q or a comma-separated list of task names", s, SelectAll))
	}
	return Selector{patterns: patterns}, nil
}

func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

func (s Selector) Matches(task string) bool {
	if s.all {
		return true
	}
	for _, p := range s.patterns {
		if glob.Glob(p, task) {
			return true
		}
	}
	return false
}

func (s Selector) String() string {
	if s.all {
		return SelectAll
	}
	return strings.Join(s.patterns, ",")
}
