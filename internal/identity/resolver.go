package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/pkg/types"
)

// resolveCluster expands a non-empty seed set into the full transitive
// closure under the linkage relation: each contact's parent via LinkedID and
// every contact whose LinkedID points at it.
//
// The traversal is iterative with an explicit work list and visited set. In
// the steady state linkage is at most one hop deep, but the traversal does
// not assume that: it stays correct when a chain is transiently deeper
// mid-merge. Termination follows from the visited set and the graph being
// finite.
//
// After the work list drains, all visited ids are re-fetched in one
// parameterized query so the result is a fresh snapshot in stable
// created_at order (a contact discovered by id may have been enqueued before
// its full row was current).
func resolveCluster(ctx context.Context, store storage.ContactStore, seeds []*types.Contact) ([]*types.Contact, error) {
	visited := make(map[int64]bool, len(seeds))
	work := make([]*types.Contact, len(seeds))
	copy(work, seeds)

	for len(work) > 0 {
		contact := work[len(work)-1]
		work = work[:len(work)-1]

		if visited[contact.ID] {
			continue
		}
		visited[contact.ID] = true

		if contact.LinkedID != nil && !visited[*contact.LinkedID] {
			parent, err := store.GetByID(ctx, *contact.LinkedID)
			switch {
			case err == nil:
				work = append(work, parent)
			case errors.Is(err, storage.ErrNotFound):
				// Link target soft-deleted out of band; the rest of the
				// cluster is still resolvable.
			default:
				return nil, fmt.Errorf("resolve cluster: fetch parent %d: %w", *contact.LinkedID, err)
			}
		}

		children, err := store.GetChildren(ctx, contact.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve cluster: fetch children of %d: %w", contact.ID, err)
		}
		for _, child := range children {
			if !visited[child.ID] {
				work = append(work, child)
			}
		}
	}

	ids := make([]int64, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}

	cluster, err := store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve cluster: snapshot re-fetch: %w", err)
	}
	return cluster, nil
}
