package shared

import (
	"fmt"
	"strings"
)

// ActorKind distinguishes human operators from automated callers
type ActorKind string

const (
	ActorKindUser   ActorKind = "user"
	ActorKindSystem ActorKind = "system"
)

// Actor identifies who performs a mutating operation. It is always passed
// explicitly and recorded on movements, sales, payments and refunds.
type Actor struct {
	Kind ActorKind
	ID   string
}

// UserActor builds an actor for an authenticated user
func UserActor(id string) Actor {
	return Actor{Kind: ActorKindUser, ID: id}
}

// SystemActor builds an actor for an automated component such as a callback worker
func SystemActor(name string) Actor {
	return Actor{Kind: ActorKindSystem, ID: name}
}

// Validate ensures the actor can be recorded
func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return NewValidationError("actor is required")
	}
	if a.Kind != ActorKindUser && a.Kind != ActorKindSystem {
		return NewValidationError(fmt.Sprintf("unknown actor kind %q", a.Kind))
	}
	return nil
}

// IsSystem reports whether the actor is an automated component
func (a Actor) IsSystem() bool {
	return a.Kind == ActorKindSystem
}

// String returns the persisted form, e.g. "user:42" or "system:callback:mpesa"
func (a Actor) String() string {
	return string(a.Kind) + ":" + a.ID
}

// ParseActor parses the persisted form produced by String
func ParseActor(s string) (Actor, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Actor{}, NewValidationError(fmt.Sprintf("malformed actor %q", s))
	}
	a := Actor{Kind: ActorKind(kind), ID: id}
	return a, a.Validate()
}
