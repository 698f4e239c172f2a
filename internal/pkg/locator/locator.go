// Package locator addresses objects in the object store as a
// (container, key) pair parsed from "s3://container/key" strings.
package locator

import (
	"strings"

	"github.com/pkg/errors"
)

// Scheme is the only URI scheme accepted by Parse.
const Scheme = "s3"

const separator = "/"

// ErrInvalidAddress is returned when a string cannot be parsed into a Locator.
var ErrInvalidAddress = errors.New("invalid address")

// Locator identifies one object (or a prefix, when Key is empty) in a container.
type Locator struct {
	Container string `json:"container"`
	Key       string `json:"key"`
}

// Parse parses an "s3://container/key" string. Exactly one leading
// separator is stripped from the path; the key is not otherwise normalized.
func Parse(text string) (Locator, error) {
	if strings.TrimSpace(text) == "" {
		return Locator{}, errors.Wrap(ErrInvalidAddress, "address cannot be blank")
	}

	idx := strings.Index(text, "://")
	if idx < 0 {
		return Locator{}, errors.Wrapf(ErrInvalidAddress, "%q has no scheme, %s:// expected", text, Scheme)
	}
	if !strings.EqualFold(text[:idx], Scheme) {
		return Locator{}, errors.Wrapf(ErrInvalidAddress, "invalid scheme %q, %s:// expected", text[:idx], Scheme)
	}

	rest := text[idx+len("://"):]
	container, key := rest, ""
	if slash := strings.Index(rest, separator); slash >= 0 {
		container, key = rest[:slash], rest[slash+len(separator):]
	}
	if container == "" {
		return Locator{}, errors.Wrapf(ErrInvalidAddress, "%q has no container", text)
	}

	return Locator{Container: container, Key: key}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(text string) Locator {
	l, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return l
}

// Join returns a Locator in the same container whose key is item appended
// to l's key.
func (l Locator) Join(item string) Locator {
	return Locator{Container: l.Container, Key: JoinKey(l.Key, item)}
}

// JoinKey combines a key prefix and a relative item the way a path join
// would, without cleaning either part. A rooted item replaces the prefix.
func JoinKey(prefix, item string) string {
	switch {
	case prefix == "":
		return item
	case item == "":
		return prefix
	case strings.HasPrefix(item, separator):
		return item
	case strings.HasSuffix(prefix, separator):
		return prefix + item
	default:
		return prefix + separator + item
	}
}

// IsZero reports whether l is the zero Locator.
func (l Locator) IsZero() bool {
	return l.Container == "" && l.Key == ""
}

// URI renders l in the form accepted by Parse.
func (l Locator) URI() string {
	return Scheme + "://" + l.Container + separator + l.Key
}

// String renders l as "container/key" for display.
func (l Locator) String() string {
	return l.Container + separator + l.Key
}
