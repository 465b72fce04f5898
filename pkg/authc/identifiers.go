package authc

import (
	"encoding/json"
	"slices"
)

// IdentifierCollection is the set of identity references representing one
// subject across realms. The first identifier added is the primary one.
type IdentifierCollection struct {
	primary  string
	bySource map[string]string
	order    []string
}

// NewIdentifierCollection returns a collection holding identifier as primary,
// attributed to source (usually a realm name).
func NewIdentifierCollection(source, identifier string) IdentifierCollection {
	var c IdentifierCollection
	c.Add(source, identifier)
	return c
}

// Add records identifier for source. An existing entry for source is kept.
func (c *IdentifierCollection) Add(source, identifier string) {
	if identifier == "" {
		return
	}
	if c.primary == "" {
		c.primary = identifier
	}
	if c.bySource == nil {
		c.bySource = make(map[string]string)
	}
	if _, ok := c.bySource[source]; ok {
		return
	}
	c.bySource[source] = identifier
	c.order = append(c.order, source)
}

// Merge adds every source of other that c does not already hold.
func (c *IdentifierCollection) Merge(other IdentifierCollection) {
	for _, src := range other.order {
		c.Add(src, other.bySource[src])
	}
}

func (c IdentifierCollection) Primary() string { return c.primary }
func (c IdentifierCollection) IsEmpty() bool   { return c.primary == "" }

// FromSource returns the identifier contributed by source.
func (c IdentifierCollection) FromSource(source string) (string, bool) {
	id, ok := c.bySource[source]
	return id, ok
}

// Sources returns the contributing sources in insertion order.
func (c IdentifierCollection) Sources() []string { return slices.Clone(c.order) }

func (c IdentifierCollection) String() string { return c.primary }

type identifierEntry struct {
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
}

func (c IdentifierCollection) MarshalJSON() ([]byte, error) {
	entries := make([]identifierEntry, 0, len(c.order))
	for _, src := range c.order {
		entries = append(entries, identifierEntry{Source: src, Identifier: c.bySource[src]})
	}
	return json.Marshal(entries)
}

func (c *IdentifierCollection) UnmarshalJSON(data []byte) error {
	var entries []identifierEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*c = IdentifierCollection{}
	for _, e := range entries {
		c.Add(e.Source, e.Identifier)
	}
	return nil
}
