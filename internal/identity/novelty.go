package identity

import (
	"context"
	"fmt"

	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/pkg/types"
)

// applyNovelty decides whether the request carries an identifier the merged
// cluster does not know yet, and if so appends exactly one secondary under
// the true primary. It re-fetches the cluster rather than trusting the
// caller's copy: arbitration has just mutated linkage, and the novelty
// decision must be made against the authoritative post-merge view.
//
// A fully-known request performs no write, which is what makes repeated
// identical lookups idempotent. The new secondary stores both submitted
// identifiers, not only the novel one.
func applyNovelty(ctx context.Context, store storage.ContactStore, primaryID int64, req Request) (bool, error) {
	cluster, err := store.GetClusterByPrimaryID(ctx, primaryID)
	if err != nil {
		return false, fmt.Errorf("novelty: re-fetch cluster %d: %w", primaryID, err)
	}

	emails := make(map[string]bool)
	phones := make(map[string]bool)
	for _, c := range cluster {
		if c.Email != nil {
			emails[*c.Email] = true
		}
		if c.PhoneNumber != nil {
			phones[*c.PhoneNumber] = true
		}
	}

	newEmail := req.Email != nil && !emails[*req.Email]
	newPhone := req.PhoneNumber != nil && !phones[*req.PhoneNumber]
	if !newEmail && !newPhone {
		return false, nil
	}

	linkedID := primaryID
	if _, err := store.Insert(ctx, req.Email, req.PhoneNumber, &linkedID, types.LinkPrecedenceSecondary); err != nil {
		return false, fmt.Errorf("novelty: insert secondary: %w", err)
	}
	return true, nil
}
