package subscription

import (
	"fmt"
	"sort"

	"mercator-hq/metering/pkg/metering/actor"
)

// Catalog is an immutable set of policies plus the ids of the defaults for
// registered users and temporary sessions.
type Catalog struct {
	policies    map[string]Policy
	userDefault string
	tempDefault string
}

// NewCatalog validates policies and the default ids.
func NewCatalog(policies []Policy, userDefaultID, temporaryDefaultID string) (*Catalog, error) {
	c := &Catalog{
		policies:    make(map[string]Policy, len(policies)),
		userDefault: userDefaultID,
		tempDefault: temporaryDefaultID,
	}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.policies[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate policy id %s", ErrInvalidPolicy, p.ID)
		}
		c.policies[p.ID] = p
	}

	for _, id := range []string{userDefaultID, temporaryDefaultID} {
		if _, ok := c.policies[id]; !ok {
			return nil, fmt.Errorf("%w: default policy %q", ErrUnknownPolicy, id)
		}
	}
	return c, nil
}

// Get returns the policy with the given id.
func (c *Catalog) Get(id string) (Policy, error) {
	p, ok := c.policies[id]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, id)
	}
	return p, nil
}

// Default returns the default policy for a's kind.
func (c *Catalog) Default(a actor.Actor) Policy {
	if a.IsTemporary() {
		return c.policies[c.tempDefault]
	}
	return c.policies[c.userDefault]
}

// Policies returns all policies sorted by id.
func (c *Catalog) Policies() []Policy {
	out := make([]Policy, 0, len(c.policies))
	for _, p := range c.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
