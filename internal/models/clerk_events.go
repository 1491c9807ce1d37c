package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/formbricks/usersync/internal/datatypes"
)

// WebhookEvent is the Clerk webhook envelope. Data stays raw until the event type is known.
type WebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// EventType maps Type to the enum; unhandled types map to datatypes.EventUnknown.
func (e *WebhookEvent) EventType() datatypes.EventType {
	et, _ := datatypes.ParseEventType(e.Type)

	return et
}

// UserData decodes Data as a user payload. A missing or null data field yields an empty payload,
// so required-field checks (not the decoder) decide whether the event is usable.
func (e *WebhookEvent) UserData() (*UserEventData, error) {
	var data UserEventData

	raw := bytes.TrimSpace(e.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &data, nil
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode user event data: %w", err)
	}

	return &data, nil
}

// EmailAddress is a nested object within Clerk user data.
type EmailAddress struct {
	ID           string `json:"id,omitempty"`
	EmailAddress string `json:"email_address"`
}

// UserEventData is the payload of user.created / user.updated / user.deleted.
// Every field is optional on the wire; per-event rules decide which are required.
type UserEventData struct {
	ID                    *string        `json:"id,omitempty"`
	EmailAddresses        []EmailAddress `json:"email_addresses,omitempty"`
	PrimaryEmailAddressID *string        `json:"primary_email_address_id,omitempty"`
	Username              *string        `json:"username,omitempty"`
	FirstName             *string        `json:"first_name,omitempty"`
	LastName              *string        `json:"last_name,omitempty"`
	ImageURL              *string        `json:"image_url,omitempty"`
	Deleted               bool           `json:"deleted,omitempty"`
}

// ExternalID returns the Clerk user ID, or "" when absent.
func (d *UserEventData) ExternalID() string {
	return deref(d.ID)
}

// PrimaryEmail returns the address referenced by primary_email_address_id when present,
// otherwise the first listed address. ok is false when no usable address exists.
func (d *UserEventData) PrimaryEmail() (email string, ok bool) {
	if len(d.EmailAddresses) == 0 {
		return "", false
	}

	if primaryID := deref(d.PrimaryEmailAddressID); primaryID != "" {
		for _, addr := range d.EmailAddresses {
			if addr.ID == primaryID && addr.EmailAddress != "" {
				return addr.EmailAddress, true
			}
		}
	}

	first := d.EmailAddresses[0].EmailAddress

	return first, first != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
