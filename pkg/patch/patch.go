// Package patch rewrites the version of selected tasks in a job
// specification: it retags container images, derives versioned
// service tags, and records the revision in task metadata.
package patch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/image"
	"github.com/fluxcd/homeless/pkg/spec"
)

const (
	// MetaRevision is set on every selected task to the new tag.
	MetaRevision = "REVISION"
	// MetaPinVersion marks a task whose image must not be changed.
	MetaPinVersion = "PIN_VERSION"
	// metaPinnedLegacy is accepted as well as MetaPinVersion.
	metaPinnedLegacy = "pinned"
)

// Drivers that run a container image given in `Config.image`.
var containerDrivers = map[string]bool{
	"docker": true,
	"podman": true,
}

type Status string

const (
	StatusUpdated Status = "updated"
	// The task is pinned; only its revision was recorded.
	StatusPinned Status = "pinned"
	// The task doesn't run a container image; its service tags and
	// revision were updated.
	StatusNoImage Status = "no image"
)

// TaskResult records what was done to one task.
type TaskResult struct {
	Group  string
	Task   string
	Status Status
	Image  string `json:",omitempty"`
}

// Result lists the selected tasks, in document order.
type Result []TaskResult

// Patched returns the tasks whose version was changed, i.e., all
// except the pinned ones.
func (r Result) Patched() Result {
	var out Result
	for _, t := range r {
		if t.Status != StatusPinned {
			out = append(out, t)
		}
	}
	return out
}

// Versions returns a copy of s in which the tasks chosen by sel are
// moved to tag. s itself is not modified.
func Versions(s spec.Specification, tag string, sel Selector) (spec.Specification, Result, error) {
	if tag == "" {
		return spec.Specification{}, nil, herr.ConfigurationError(errors.New("no version tag given"))
	}
	out := s.Copy()
	var result Result
	for _, group := range out.TaskGroups() {
		groupName, _ := group.GetString(spec.FieldName)
		for _, task := range spec.Tasks(group) {
			name, _ := task.GetString(spec.FieldName)
			if !sel.Matches(name) {
				continue
			}
			res, err := patchTask(task, tag)
			if err != nil {
				return spec.Specification{}, nil, errors.Wrapf(err, "task %q in group %q", name, groupName)
			}
			res.Group, res.Task = groupName, name
			result = append(result, res)
		}
	}
	return out, result, nil
}

func patchTask(task *spec.Map, tag string) (TaskResult, error) {
	var res TaskResult
	meta, ok := task.GetMap(spec.FieldMeta)
	if !ok {
		meta = spec.NewMap()
	}

	switch {
	case pinned(meta):
		res.Status = StatusPinned
	default:
		res.Status = StatusNoImage
		driver, _ := task.GetString(spec.FieldDriver)
		if containerDrivers[driver] {
			img, err := retagContainer(task, tag)
			if err != nil {
				return res, err
			}
			res.Status, res.Image = StatusUpdated, img
		}
		duplicateServiceTags(task, tag)
	}

	meta.Set(MetaRevision, tag)
	task.Set(spec.FieldMeta, meta)
	return res, nil
}

// pinned reads the pin flag in any of the forms it's likely to be
// written: true, "true", "1" or 1.
func pinned(meta *spec.Map) bool {
	for _, key := range []string{MetaPinVersion, metaPinnedLegacy} {
		v, ok := meta.Get(key)
		if !ok {
			continue
		}
		switch v := v.(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if v == "true" || v == "1" {
				return true
			}
		case spec.Decimal:
			if n, ok := spec.Normalize(v).(int64); ok && n == 1 {
				return true
			}
		case int64:
			if v == 1 {
				return true
			}
		case int:
			if v == 1 {
				return true
			}
		case float64:
			if v == 1 {
				return true
			}
		}
	}
	return false
}

func retagContainer(task *spec.Map, tag string) (string, error) {
	config, ok := task.GetMap(spec.FieldConfig)
	if !ok {
		return "", errors.New("container task has no Config")
	}
	current, ok := config.GetString(spec.FieldImage)
	if !ok {
		return "", errors.New("container task has no Config.image")
	}
	updated, err := image.Retag(current, tag)
	if err != nil {
		return "", err
	}
	config.Set(spec.FieldImage, updated)
	return updated, nil
}

// duplicateServiceTags adds `<tag>-<version>` for each existing tag of
// each service. The existing tags are kept.
func duplicateServiceTags(task *spec.Map, version string) {
	services, _ := task.GetSlice(spec.FieldServices)
	for _, s := range services {
		service, ok := s.(*spec.Map)
		if !ok {
			continue
		}
		tags, ok := service.GetSlice(spec.FieldTags)
		if !ok || tags == nil {
			continue
		}
		derived := make([]interface{}, 0, len(tags)*2)
		derived = append(derived, tags...)
		for _, t := range tags {
			derived = append(derived, fmt.Sprintf("%v-%s", t, version))
		}
		service.Set(spec.FieldTags, derived)
	}
}

// Describe summarises a result for the log.
func (r Result) Describe() string {
	var parts []string
	for _, t := range r {
		parts = append(parts, fmt.Sprintf("%s/%s:%s", t.Group, t.Task, t.Status))
	}
	return strings.Join(parts, " ")
}
