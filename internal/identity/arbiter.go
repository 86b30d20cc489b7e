package identity

import (
	"context"
	"fmt"

	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/pkg/types"
)

// arbitrate enforces single-primacy over a resolved cluster. When the cluster
// spans what were previously independent clusters it holds several primaries;
// the oldest (created_at, then id) wins and every other primary is demoted
// under it, with that primary's dependents repointed in the same step so no
// two-hop chain survives.
//
// Demotions commute: each demoted primary's dependents are repointed to the
// same winner, so the order of the demoted set does not affect the final
// state. Returns the true primary and whether any demotion happened.
func arbitrate(ctx context.Context, store storage.ContactStore, cluster []*types.Contact) (*types.Contact, bool, error) {
	var primaries []*types.Contact
	for _, c := range cluster {
		if c.IsPrimary() {
			primaries = append(primaries, c)
		}
	}
	if len(primaries) == 0 {
		return nil, false, ErrNoPrimary
	}

	truePrimary := primaries[0]
	for _, p := range primaries[1:] {
		if types.Older(p, truePrimary) {
			truePrimary = p
		}
	}

	merged := false
	for _, p := range primaries {
		if p.ID == truePrimary.ID {
			continue
		}
		if err := store.Demote(ctx, p.ID, truePrimary.ID); err != nil {
			return nil, false, fmt.Errorf("arbitrate: demote %d: %w", p.ID, err)
		}
		if err := store.Repoint(ctx, p.ID, truePrimary.ID); err != nil {
			return nil, false, fmt.Errorf("arbitrate: repoint dependents of %d: %w", p.ID, err)
		}
		merged = true
	}

	return truePrimary, merged, nil
}
