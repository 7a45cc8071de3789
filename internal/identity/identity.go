// Package identity models entity identities as an explicit two-variant type:
// temporary identities minted on the device while offline, and permanent
// identities assigned by the server. Keeping the variant in the type (rather
// than prefix-sniffing strings at call sites) means a temporary identity can
// only enter the system through NewTemporary or Parse.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// tempPrefix namespaces client-minted identities in their persisted string
// form. Only Parse is allowed to interpret it.
const tempPrefix = "tmp_"

// Identity is either a client-generated temporary identity or a
// server-assigned permanent one. The zero value is invalid.
type Identity struct {
	value     string
	temporary bool
}

// NewTemporary mints a fresh temporary identity. Tokens are UUID-backed and
// never reused within or across device restarts.
func NewTemporary() Identity {
	return Identity{value: tempPrefix + uuid.NewString(), temporary: true}
}

// Server wraps a server-assigned identity.
func Server(id string) Identity {
	return Identity{value: id}
}

// Parse restores an Identity from its persisted string form.
func Parse(s string) (Identity, error) {
	if s == "" {
		return Identity{}, fmt.Errorf("parse identity: empty string")
	}
	if strings.HasPrefix(s, tempPrefix) {
		if len(s) == len(tempPrefix) {
			return Identity{}, fmt.Errorf("parse identity: bare temporary prefix")
		}
		return Identity{value: s, temporary: true}, nil
	}
	return Identity{value: s}, nil
}

// MustParse is Parse for identities already validated by the store layer.
func MustParse(s string) Identity {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsTemporary reports whether the identity was minted on the device and has
// not (as far as the caller knows) been reconciled yet.
func (id Identity) IsTemporary() bool {
	return id.temporary
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.value == ""
}

// String returns the persisted string form.
func (id Identity) String() string {
	return id.value
}

// Equal reports value equality.
func (id Identity) Equal(other Identity) bool {
	return id.value == other.value
}
