package entity

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of an entities seed file:
//
//	entities:
//	  - entity_id: light.kitchen
//	    domain: knx
//	    device_id: dev-kitchen-dimmer
//	    name: Kitchen Downlights
type seedFile struct {
	Entities []Entry `yaml:"entities"`
}

// LoadSeedFile reads entries from a YAML seed file.
func LoadSeedFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	for i := range f.Entities {
		if err := f.Entities[i].Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
	}
	return f.Entities, nil
}

// Seed registers every entry not already present, in file order.
// Returns the number of entries added.
func (r *Registry) Seed(ctx context.Context, entries []Entry) (int, error) {
	added := 0
	for i := range entries {
		e := entries[i]
		if _, err := r.Get(e.EntityID); err == nil {
			continue
		}
		if err := r.Register(ctx, &e); err != nil {
			if errors.Is(err, ErrEntryExists) {
				continue
			}
			return added, fmt.Errorf("seeding %s: %w", e.EntityID, err)
		}
		added++
	}

	if added > 0 {
		r.logger.Info("entity registry seeded", "added", added)
	}
	return added, nil
}
