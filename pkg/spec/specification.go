package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
)

// Field names in a job document, as rendered by `nomad job run -output`.
const (
	FieldJob         = "Job"
	FieldID          = "ID"
	FieldName        = "Name"
	FieldRegion      = "Region"
	FieldDatacenter  = "Datacenter"
	FieldDatacenters = "Datacenters"
	FieldTaskGroups  = "TaskGroups"
	FieldTasks       = "Tasks"
	FieldDriver      = "Driver"
	FieldConfig      = "Config"
	FieldImage       = "image"
	FieldMeta        = "Meta"
	FieldServices    = "Services"
	FieldTags        = "Tags"
	FieldUpdate      = "Update"
	FieldCanary      = "Canary"
)

// Specification is a complete job document, i.e., `{"Job": {...}}`.
// Stages of a deployment take a Specification and return a new one;
// they never modify the one they were given.
type Specification struct {
	Job *Map
}

// Parse reads a rendered job document and normalizes its numbers.
func Parse(r io.Reader) (Specification, error) {
	root, err := DecodeJSONMap(r)
	if err != nil {
		return Specification{}, errors.Wrap(err, "parsing job specification")
	}
	Normalize(root)
	return FromMap(root)
}

// FromMap takes the job out of a document root. The job must have an
// identifier.
func FromMap(root *Map) (Specification, error) {
	job, ok := root.GetMap(FieldJob)
	if !ok {
		return Specification{}, herr.ConfigurationError(errors.New(`job specification has no "Job" object`))
	}
	if id, _ := job.GetString(FieldID); id == "" {
		return Specification{}, herr.ConfigurationError(errors.New(`job specification has no "ID"`))
	}
	return Specification{Job: job}, nil
}

func (s Specification) ID() string {
	id, _ := s.Job.GetString(FieldID)
	return id
}

func (s Specification) Copy() Specification {
	return Specification{Job: s.Job.Copy()}
}

func (s Specification) MarshalJSON() ([]byte, error) {
	return MapOf(FieldJob, s.Job).MarshalJSON()
}

// Indented renders the document for people to read.
func (s Specification) Indented() string {
	bs, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("<unprintable: %v>", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, bs, "", "  "); err != nil {
		return string(bs)
	}
	return buf.String()
}

// TaskGroups returns the task groups of the job, skipping anything
// that isn't a mapping.
func (s Specification) TaskGroups() []*Map {
	return mapsIn(s.Job, FieldTaskGroups)
}

// Tasks returns the tasks of a task group.
func Tasks(group *Map) []*Map {
	return mapsIn(group, FieldTasks)
}

func mapsIn(m *Map, key string) []*Map {
	items, _ := m.GetSlice(key)
	var out []*Map
	for _, item := range items {
		if sub, ok := item.(*Map); ok && sub != nil {
			out = append(out, sub)
		}
	}
	return out
}
