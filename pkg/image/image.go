// Package image reads and rewrites the container image references
// found in task configs.
package image

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRef   = errors.New("invalid image reference")
	errBlank        = errors.Wrap(ErrInvalidRef, "blank image name")
	errMalformed    = errors.Wrap(ErrInvalidRef, "expected <image>:<tag> or just <image>")
	errDigestPinned = errors.Wrap(ErrInvalidRef, "image is referred to by digest, and cannot be retagged")
)

// Ref is an image reference such as `alpine:3.5`,
// `docker.io/team/api:1a2b3c4d` or `localhost:5000/path/to/repo`. Tag
// may be empty.
type Ref struct {
	Domain string
	Image  string
	Tag    string
}

func (r Ref) String() string {
	if r.Image == "" {
		return ""
	}
	s := r.Image
	if r.Domain != "" {
		s = r.Domain + "/" + s
	}
	if r.Tag != "" {
		s += ":" + r.Tag
	}
	return s
}

// ParseRef splits a reference into its registry domain, image path
// and tag. A registry port belongs to the domain, so the tag of
// `localhost:5000/repo:v1` is `v1`. References by digest are refused,
// since they can't be given a new tag.
func ParseRef(s string) (Ref, error) {
	var ref Ref
	switch {
	case s == "":
		return ref, errors.Wrapf(errBlank, "parsing %q", s)
	case strings.Contains(s, "@"):
		return ref, errors.Wrapf(errDigestPinned, "parsing %q", s)
	case strings.HasPrefix(s, "/"), strings.HasSuffix(s, "/"):
		return ref, errors.Wrapf(errMalformed, "parsing %q", s)
	}

	ref.Image = s
	if i := strings.Index(s, "/"); i > 0 {
		first, rest := s[:i], s[i+1:]
		// With more than two path elements the first must be a domain;
		// with two, only if it looks like one.
		if strings.Contains(rest, "/") || isDomain(first) {
			ref.Domain, ref.Image = first, rest
		}
	}

	parts := strings.Split(ref.Image, ":")
	switch {
	case len(parts) == 1:
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		ref.Image, ref.Tag = parts[0], parts[1]
	default:
		return ref, errors.Wrapf(errMalformed, "parsing %q", s)
	}
	return ref, nil
}

// isDomain says whether the first element of a reference names a
// registry: it has a dot or a port, or is localhost. `registry:5000`
// is a domain; `team` is a path element.
func isDomain(s string) bool {
	return s == "localhost" || strings.ContainsAny(s, ".:")
}

// Retag returns the reference s with its tag replaced, or added if it
// had none.
func Retag(s, tag string) (string, error) {
	ref, err := ParseRef(s)
	if err != nil {
		return "", err
	}
	ref.Tag = tag
	return ref.String(), nil
}
