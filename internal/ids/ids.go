// Package ids provides typed identifiers and value objects shared across
// the indexing and persistence layers.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// MaxBackendNameLength is the longest collection name accepted by external
// vector backends.
const MaxBackendNameLength = 255

// NewID returns a new UUIDv4 string identifier.
func NewID() string {
	return uuid.NewString()
}

// CollectionID identifies a logical vector/FTS collection for a project or
// branch. The raw name accepts arbitrary UTF-8; BackendName maps it to an
// identifier external backends accept.
type CollectionID struct {
	name string
}

// FromName creates a CollectionID from an arbitrary name.
func FromName(name string) (CollectionID, error) {
	if strings.TrimSpace(name) == "" {
		return CollectionID{}, fmt.Errorf("collection name must not be empty")
	}
	return CollectionID{name: name}, nil
}

// MustFromName is FromName for static names known to be valid.
func MustFromName(name string) CollectionID {
	id, err := FromName(name)
	if err != nil {
		panic(err)
	}
	return id
}

// Name returns the raw collection name.
func (c CollectionID) Name() string {
	return c.name
}

// String implements fmt.Stringer.
func (c CollectionID) String() string {
	return c.name
}

// IsZero reports whether the id is the zero value.
func (c CollectionID) IsZero() bool {
	return c.name == ""
}

// BackendName returns a backend-safe identifier: starts with a letter,
// contains only letters, digits, and underscores, and is at most
// MaxBackendNameLength characters. Names that had to be mangled get a short
// hash suffix so distinct raw names never collide.
func (c CollectionID) BackendName() string {
	var b strings.Builder
	mangled := false

	for _, r := range c.name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			mangled = true
		}
	}

	safe := b.String()
	if safe == "" || !startsWithLetter(safe) {
		safe = "c_" + safe
		mangled = true
	}

	if mangled {
		sum := sha256.Sum256([]byte(c.name))
		safe = safe + "_" + hex.EncodeToString(sum[:])[:8]
	}

	if len(safe) > MaxBackendNameLength {
		sum := sha256.Sum256([]byte(c.name))
		suffix := "_" + hex.EncodeToString(sum[:])[:8]
		safe = safe[:MaxBackendNameLength-len(suffix)] + suffix
	}

	return safe
}

func startsWithLetter(s string) bool {
	for _, r := range s {
		return unicode.IsLetter(r)
	}
	return false
}

// Embedding is a fixed-dimension vector produced by an embedding provider.
type Embedding struct {
	Vector     []float32
	Model      string
	Dimensions int
}

// Validate checks the vector length matches the declared dimensions.
func (e Embedding) Validate() error {
	if len(e.Vector) != e.Dimensions {
		return fmt.Errorf("embedding dimension mismatch: vector has %d values, declared %d", len(e.Vector), e.Dimensions)
	}
	return nil
}

// Sentinel values returned by backends that lack a given result field.
const (
	UnknownLanguage  = "unknown"
	UnknownStartLine = 0
)

// SearchResult is a single hit from vector or hybrid search.
type SearchResult struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	Language  string  `json:"language"`
}
