// Package catalog derives the named relay configurations available for a
// thermostat profile. A Catalog is built once per profile and never changes.
package catalog

import (
	"sort"

	"github.com/sweeney/relay-rig/internal/pins"
)

// Well-known configuration names.
const (
	ConfigPower = "CONFIG_POWER"
	ConfigFan   = "CONFIG_FAN"
	ConfigAll   = "CONFIG_ALL"
)

// Catalog is an immutable mapping from configuration name to pin set.
type Catalog struct {
	profile Profile
	configs map[string]pins.Set
	names   []string
	omitted []string
}

// Build validates p and derives every configuration it supports.
// Derived sets that would energize mutually exclusive pins are left out of
// the catalog; Omitted lists their names.
func Build(p Profile) (*Catalog, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &Catalog{profile: p, configs: make(map[string]pins.Set)}
	for name, set := range derive(p) {
		if len(pins.Conflicts(set)) > 0 {
			c.omitted = append(c.omitted, name)
			continue
		}
		c.configs[name] = set
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	sort.Strings(c.omitted)
	return c, nil
}

// Lookup returns the pin set for name. The returned Set is a copy.
func (c *Catalog) Lookup(name string) (pins.Set, bool) {
	s, ok := c.configs[name]
	if !ok {
		return nil, false
	}
	return append(pins.Set(nil), s...), true
}

// Names returns every configuration name in sorted order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Omitted returns the names whose derived pin sets were unsafe for this
// profile, in sorted order.
func (c *Catalog) Omitted() []string {
	return append([]string(nil), c.omitted...)
}

// Len returns the number of configurations.
func (c *Catalog) Len() int { return len(c.names) }

// Profile returns the profile the catalog was built for.
func (c *Catalog) Profile() Profile { return c.profile }
