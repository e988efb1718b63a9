package overrides

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/fluxcd/homeless/pkg/spec"
)

// FileStore reads overrides from files named `<environment>_<job>`
// with a .json, .yaml or .yml extension, in Dir. A file holds the item
// as it would be in DynamoDB, i.e., `{"overrides": {...}}`.
type FileStore struct {
	Dir string
}

var extensions = []string{".json", ".yaml", ".yml"}

func (s *FileStore) Get(ctx context.Context, job, environment string) (*spec.Map, error) {
	for _, ext := range extensions {
		path := filepath.Join(s.Dir, fmt.Sprintf("%s_%s%s", environment, job, ext))
		bs, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading overrides from %s", path)
		}
		item, err := decodeItem(bs, ext)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding overrides from %s", path)
		}
		return itemOverrides(item)
	}
	return nil, nil
}

func decodeItem(bs []byte, ext string) (*spec.Map, error) {
	if ext == ".json" {
		return spec.DecodeJSONMap(bytes.NewReader(bs))
	}
	item := spec.NewMap()
	if err := yaml.Unmarshal(bs, item); err != nil {
		return nil, err
	}
	return item, nil
}

func itemOverrides(item *spec.Map) (*spec.Map, error) {
	v, ok := item.Get(AttrOverrides)
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(*spec.Map)
	if !ok {
		return nil, errors.Errorf("%q is a %T, not a mapping", AttrOverrides, v)
	}
	return m, nil
}
