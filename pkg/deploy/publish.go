package deploy

import (
	"context"
	"path"

	"github.com/pkg/errors"

	"github.com/fluxcd/homeless/pkg/kv"
)

// PublishActiveTags returns a ReadyFunc that records the new tag of
// each patched task at `<prefix>/<job>/<group>/<task>`, so that other
// systems can tell which version is live. Pinned tasks keep whatever
// was recorded for them before.
func PublishActiveTags(p kv.Publisher, prefix string) ReadyFunc {
	return func(ctx context.Context, ev ReadyEvent) error {
		for _, t := range ev.Tasks.Patched() {
			key := path.Join(prefix, ev.Job, t.Group, t.Task)
			if err := p.Put(ctx, key, ev.Tag); err != nil {
				return errors.Wrapf(err, "publishing active tag of %s/%s", t.Group, t.Task)
			}
		}
		return nil
	}
}
