package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/coalesce-dev/coalesce/internal/identity"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FlexString accepts either a JSON string or a JSON number. Clients send
// phone numbers both ways; numeric values are preserved verbatim as their
// decimal text.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	return fmt.Errorf("value must be a string or a number")
}

// IdentifyRequest is the request body for POST /identify. Both fields are
// optional, but at least one must carry a non-blank value.
type IdentifyRequest struct {
	Email       string     `json:"email"`
	PhoneNumber FlexString `json:"phoneNumber"`
}

// IdentifyResponse is the response format for POST /identify.
type IdentifyResponse struct {
	Contact ContactView `json:"contact"`
}

// ContactView is the consolidated view of one identity cluster.
type ContactView struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// ToIdentifyResponse converts a service aggregate into the wire shape.
func ToIdentifyResponse(agg identity.Aggregate) IdentifyResponse {
	return IdentifyResponse{
		Contact: ContactView{
			PrimaryContactID:    agg.PrimaryContactID,
			Emails:              agg.Emails,
			PhoneNumbers:        agg.PhoneNumbers,
			SecondaryContactIDs: agg.SecondaryContactIDs,
		},
	}
}

// StatusResponse is the response format for GET / and GET /api/health.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Breaker string `json:"breaker,omitempty"`
}
