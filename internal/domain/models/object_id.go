package models

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kunay1/seal/pkg/constants"
)

// ObjectID is a fixed-width 32-byte identifier. It names policy scopes (packages),
// policy identifiers, touched objects and user addresses.
type ObjectID [constants.ObjectIDLength]byte

// ParseObjectID parses a 0x-prefixed, 64-digit hex identifier. Shortened forms are
// rejected so that every identifier has exactly one encoding.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if !strings.HasPrefix(s, "0x") {
		return id, fmt.Errorf("identifier %q is missing the 0x prefix", s)
	}
	body := s[2:]
	if len(body) != 2*constants.ObjectIDLength {
		return id, fmt.Errorf("identifier %q has %d hex digits, want %d", s, len(body), 2*constants.ObjectIDLength)
	}
	if strings.ToLower(body) != body {
		return id, fmt.Errorf("identifier %q must be lowercase hex", s)
	}
	if _, err := hex.Decode(id[:], []byte(body)); err != nil {
		return id, fmt.Errorf("identifier %q is not valid hex: %w", s, err)
	}
	return id, nil
}

// MustParseObjectID is ParseObjectID for constants and tests.
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the identifier in its canonical form.
func (id ObjectID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Bytes returns a copy of the identifier bytes.
func (id ObjectID) Bytes() []byte {
	out := make([]byte, len(id))
	copy(out, id[:])
	return out
}

// IsZero reports whether the identifier is all zeroes.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ObjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
