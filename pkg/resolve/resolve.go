// Package resolve maps user-supplied session tokens to durable session IDs.
//
// Resolution order is fixed: a token starting with '@' is an alias, a token
// that parses as an integer is a 1-based index into the current listing, and
// anything else passes through as a literal session ID. Numeric tokens are
// always indices; aliases require the sentinel, so the two can never collide.
package resolve

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/juleshq/jules/pkg/alias"
	"github.com/juleshq/jules/pkg/api"
)

// ErrIndexOutOfRange is returned for numeric tokens outside 1..len(listing).
var ErrIndexOutOfRange = errors.New("session index out of range")

// ErrUnknownAlias mirrors the alias store sentinel so callers can match
// either package's errors with a single errors.Is target.
var ErrUnknownAlias = alias.ErrUnknownAlias

// AliasTable is the lookup surface the resolver needs from the alias store.
type AliasTable interface {
	Resolve(name string) (string, error)
}

// Resolve maps token to a session ID against listing and aliases.
func Resolve(token string, listing []api.Session, aliases AliasTable) (string, error) {
	id, _, err := ResolveIndex(token, listing, aliases)
	return id, err
}

// ResolveIndex behaves like Resolve and additionally reports the 1-based
// position of the resolved session in listing (0 when the session is not in
// the listing, e.g. a literal ID for a session outside the snapshot).
func ResolveIndex(token string, listing []api.Session, aliases AliasTable) (string, int, error) {
	if strings.HasPrefix(token, "@") {
		id, err := aliases.Resolve(token)
		if err != nil {
			return "", 0, err
		}
		return id, indexOf(listing, id), nil
	}

	if n, err := strconv.Atoi(token); err == nil {
		if n <= 0 || n > len(listing) {
			return "", 0, fmt.Errorf("%w: %d (listing has %d sessions)", ErrIndexOutOfRange, n, len(listing))
		}
		return listing[n-1].ID, n, nil
	}

	// Literal remote ID; validity is decided by the remote service on use.
	return token, indexOf(listing, token), nil
}

func indexOf(listing []api.Session, id string) int {
	for i, s := range listing {
		if s.ID == id {
			return i + 1
		}
	}
	return 0
}
