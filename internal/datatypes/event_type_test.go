package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in     string
		want   EventType
		wantOK bool
	}{
		{"user.created", UserCreated, true},
		{"user.updated", UserUpdated, true},
		{"user.deleted", UserDeleted, true},
		{"session.created", EventUnknown, false},
		{"", EventUnknown, false},
		{"USER.CREATED", EventUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseEventType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "user.created", UserCreated.String())
	assert.Equal(t, "user.deleted", UserDeleted.String())
	assert.Equal(t, "unknown", EventUnknown.String())
	assert.Equal(t, "unknown", EventType(99).String())
}

func TestHandledEventTypes(t *testing.T) {
	handled := make([]string, 0, len(eventTypeMap))
	for name := range eventTypeMap {
		handled = append(handled, name)
	}

	assert.ElementsMatch(t, []string{"user.created", "user.updated", "user.deleted"}, handled)
	assert.True(t, IsHandledEventType("user.updated"))
	assert.False(t, IsHandledEventType("organization.created"))
}
