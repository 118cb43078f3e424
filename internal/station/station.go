package station

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/gosimple/slug"
)

// ErrEmptyStation is returned for empty or whitespace-only station names.
var ErrEmptyStation = errors.New("station name is empty")

// Key is the canonical station identity used for joins and similarity lookups.
type Key string

func (k Key) String() string { return string(k) }

// fallbackPrefix marks keys built from names that slugify to nothing.
const fallbackPrefix = "st-"

// Normalize canonicalizes a raw station name into a slug key.
// Normalizing an existing key returns it unchanged.
func Normalize(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyStation
	}

	if s := slug.Make(trimmed); s != "" {
		return Key(s), nil
	}

	// names made only of symbols slug strips still need a stable key
	return Key(fallbackPrefix + hex.EncodeToString([]byte(trimmed))), nil
}
