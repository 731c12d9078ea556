package params

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedKey is returned by ParseKey for placeholders that are not of the
// form "Collection.Name".
var ErrMalformedKey = errors.New("malformed parameter key")

// Key addresses one parameter in a Store.
type Key struct {
	Collection string
	Name       string
}

// ParseKey splits a "Collection.Name" placeholder on its first separator.
func ParseKey(s string) (Key, error) {
	collection, name, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || collection == "" || name == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return Key{Collection: collection, Name: name}, nil
}

// MustKey is like ParseKey but panics on malformed input. It is intended for
// keys written as literals in experiment code.
func MustKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the dotted "Collection.Name" form.
func (k Key) String() string {
	return k.Collection + "." + k.Name
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k.Collection == "" && k.Name == ""
}
