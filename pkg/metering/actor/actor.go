// Package actor defines the billable identities usage is metered against.
package actor

import (
	"errors"
	"fmt"
)

// GlobalKey is the reserved identifier of the platform itself. It names both
// the global app aggregate's owner and the app key used for usage that is not
// attributable to a tenant application.
const GlobalKey = "os-global"

// ErrInvalidActor is returned for actors without an identifier.
var ErrInvalidActor = errors.New("invalid actor")

// Kind distinguishes registered users, temporary sessions and the platform.
type Kind string

const (
	// KindUser is a registered user.
	KindUser Kind = "user"

	// KindTemporary is a temporary or anonymous session.
	KindTemporary Kind = "temporary"

	// KindPlatform is reserved for the global platform sentinel.
	KindPlatform Kind = "platform"
)

// Actor is a billable tenant identity (value type).
type Actor struct {
	ID   string
	Kind Kind
}

// Global is the platform sentinel actor. It is aggregated like any other
// actor and never subject to quota enforcement.
var Global = Actor{ID: GlobalKey, Kind: KindPlatform}

// User returns a registered user actor.
func User(id string) Actor { return Actor{ID: id, Kind: KindUser} }

// Temporary returns a temporary session actor.
func Temporary(id string) Actor { return Actor{ID: id, Kind: KindTemporary} }

// IsGlobal reports whether a is the platform sentinel. Only the sentinel
// identifier qualifies; the kind alone never does.
func (a Actor) IsGlobal() bool {
	return a.ID == GlobalKey
}

// IsTemporary reports whether a is a temporary session.
func (a Actor) IsTemporary() bool {
	return a.Kind == KindTemporary
}

// Validate checks that a can own aggregates.
func (a Actor) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidActor)
	}
	switch a.Kind {
	case KindUser, KindTemporary, "":
		return nil
	case KindPlatform:
		if a.ID != GlobalKey {
			return fmt.Errorf("%w: kind %q is reserved for %s", ErrInvalidActor, a.Kind, GlobalKey)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidActor, a.Kind)
	}
}

// String returns the actor in kind/id form.
func (a Actor) String() string {
	kind := a.Kind
	if kind == "" {
		kind = KindUser
	}
	return string(kind) + "/" + a.ID
}

// ParseKind maps a textual kind to a Kind. Empty input is KindUser.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case "":
		return KindUser, nil
	case KindUser, KindTemporary, KindPlatform:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidActor, s)
	}
}
