// Package merge combines a base job document with environment
// specific overrides.
//
// Overrides have the same shape as the document they are applied to,
// with two extensions:
//
//   - a key ending in `.*` applies its (mapping) value to every element
//     of the list at the key without the suffix, e.g.,
//     `{"TaskGroups.*": {"Count": 2}}` sets the count of every group;
//
//   - a key `@cond(field op value)` holds overrides that are applied
//     only when the document being merged into has (or, for `!=`,
//     doesn't have) the given value at field. The condition is
//     evaluated against the document as it stands at that point in
//     the merge, so overrides earlier in the document can affect it.
//
// Lists in overrides are appended to lists in the base; everything
// else replaces what was there, with mappings merged recursively.
package merge

import (
	"strings"

	"github.com/fluxcd/homeless/pkg/spec"
)

const broadcastSuffix = ".*"

// Merge applies overrides to base and returns the result. Neither
// argument is modified. Decimal numbers in the overrides are
// normalized before merging.
func Merge(base, overrides *spec.Map) (*spec.Map, error) {
	result := base.Copy()
	extras := overrides.Copy()
	spec.Normalize(extras)
	if err := mergeInto(result, extras, ""); err != nil {
		return nil, err
	}
	return result, nil
}

// Specification merges overrides into the job of a specification. A
// nil overrides document means there is nothing to apply.
func Specification(s spec.Specification, overrides *spec.Map) (spec.Specification, error) {
	if overrides == nil {
		return s.Copy(), nil
	}
	job, err := Merge(s.Job, overrides)
	if err != nil {
		return spec.Specification{}, err
	}
	return spec.Specification{Job: job}, nil
}

func mergeInto(base, extras *spec.Map, path string) error {
	for _, key := range extras.Keys() {
		val, _ := extras.Get(key)
		keyPath := join(path, key)

		if list, ok := val.([]interface{}); ok {
			existing, _ := base.Get(key)
			switch existing := existing.(type) {
			case []interface{}:
				base.Set(key, append(existing, list...))
			case nil:
				// absent, or explicitly null
				base.Set(key, list)
			default:
				return &ConflictError{Key: keyPath, Base: existing}
			}
			continue
		}

		if !supported(val) {
			return &UnsupportedTypeError{Key: keyPath, Value: val}
		}

		refKey, broadcast := key, false
		if strings.HasSuffix(key, broadcastSuffix) {
			refKey, broadcast = strings.TrimSuffix(key, broadcastSuffix), true
		}

		existing, present := base.Get(refKey)
		if !present {
			if IsCondition(refKey) {
				cond, err := ParseCondition(key)
				if err != nil {
					return err
				}
				if !cond.Match(base) {
					continue
				}
				nested, ok := val.(*spec.Map)
				if !ok {
					return &ConditionError{Expression: key, Reason: "conditional overrides must be a mapping"}
				}
				if err := mergeInto(base, nested, path); err != nil {
					return err
				}
				continue
			}
			base.Set(refKey, val)
			continue
		}

		baseMap, baseIsMap := existing.(*spec.Map)
		valMap, valIsMap := val.(*spec.Map)
		baseList, baseIsList := existing.([]interface{})
		switch {
		case baseIsMap && baseMap != nil && valIsMap && valMap != nil:
			if err := mergeInto(baseMap, valMap, join(path, refKey)); err != nil {
				return err
			}
		case baseIsList && valIsMap && broadcast:
			fanned := make([]interface{}, len(baseList))
			for i, each := range baseList {
				elem, ok := each.(*spec.Map)
				if !ok || elem == nil {
					return &ConflictError{Key: keyPath, Base: each}
				}
				if err := mergeInto(elem, valMap.Copy(), join(path, refKey)); err != nil {
					return err
				}
				fanned[i] = elem
			}
			base.Set(refKey, fanned)
		default:
			base.Set(refKey, val)
		}
	}
	return nil
}

// supported lists the types an override may hold, other than lists.
func supported(v interface{}) bool {
	switch v.(type) {
	case *spec.Map, string, bool, []byte, nil,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128:
		return true
	}
	return false
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
