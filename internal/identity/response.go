package identity

import "github.com/coalesce-dev/coalesce/pkg/types"

// buildAggregate projects a final cluster (sorted by created_at) into the
// caller-facing aggregate. The primary's email and phone lead their lists;
// secondaries follow in cluster order with order-preserving deduplication by
// first occurrence. Slices are allocated non-nil so the transport encodes
// them as empty arrays, never null.
func buildAggregate(cluster []*types.Contact) (Aggregate, error) {
	var primary *types.Contact
	for _, c := range cluster {
		if c.IsPrimary() {
			primary = c
			break
		}
	}
	if primary == nil {
		return Aggregate{}, ErrNoPrimary
	}

	agg := Aggregate{
		PrimaryContactID:    primary.ID,
		Emails:              make([]string, 0, len(cluster)),
		PhoneNumbers:        make([]string, 0, len(cluster)),
		SecondaryContactIDs: make([]int64, 0, len(cluster)),
	}

	if primary.Email != nil {
		agg.Emails = append(agg.Emails, *primary.Email)
	}
	if primary.PhoneNumber != nil {
		agg.PhoneNumbers = append(agg.PhoneNumbers, *primary.PhoneNumber)
	}

	for _, c := range cluster {
		if c.ID == primary.ID {
			continue
		}
		if c.Email != nil {
			agg.Emails = appendUnique(agg.Emails, *c.Email)
		}
		if c.PhoneNumber != nil {
			agg.PhoneNumbers = appendUnique(agg.PhoneNumbers, *c.PhoneNumber)
		}
		agg.SecondaryContactIDs = append(agg.SecondaryContactIDs, c.ID)
	}

	return agg, nil
}

// appendUnique appends value unless it is already present. Clusters are
// small, so the linear scan beats carrying a set alongside the slice.
func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
