// Package identity implements the cluster-consolidation core: matching
// submitted identifiers to known contacts, resolving the transitive cluster,
// arbitrating primacy across merged clusters, appending novel identifiers,
// and projecting the consolidated aggregate view.
package identity

import (
	"strconv"
	"strings"
)

// Request is the validated input to Identify. A nil field means the caller
// did not supply that identifier; at least one field is non-nil.
type Request struct {
	Email       *string
	PhoneNumber *string
}

// NewRequest trims both identifiers, treats empty-after-trim values as
// absent, and rejects a request that carries neither.
func NewRequest(email, phoneNumber string) (Request, error) {
	var req Request
	if v := strings.TrimSpace(email); v != "" {
		req.Email = &v
	}
	if v := strings.TrimSpace(phoneNumber); v != "" {
		req.PhoneNumber = &v
	}
	if req.Email == nil && req.PhoneNumber == nil {
		return Request{}, ErrValidation
	}
	return req, nil
}

// flightKey identifies byte-identical requests for singleflight collapsing.
// Each present field is quoted, so identifiers containing whitespace or the
// separator cannot make two distinct pairs produce the same key; a nil field
// contributes nothing, which quoting keeps distinct from any real value.
func (r Request) flightKey() string {
	var b strings.Builder
	if r.Email != nil {
		b.WriteString(strconv.Quote(*r.Email))
	}
	b.WriteByte('|')
	if r.PhoneNumber != nil {
		b.WriteString(strconv.Quote(*r.PhoneNumber))
	}
	return b.String()
}

// Aggregate is the caller-facing view of one consolidated identity cluster.
// Emails and PhoneNumbers list the primary's value first (when present)
// followed by secondaries in creation order, deduplicated by first
// occurrence. Slices are always non-nil.
type Aggregate struct {
	PrimaryContactID    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []int64
}
