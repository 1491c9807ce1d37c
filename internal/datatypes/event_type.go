// Package datatypes defines shared types for events (e.g. Clerk webhook event types).
package datatypes

// EventType represents a Clerk webhook event type as an enum.
// Use String() to get the wire representation.
type EventType uint16

// Event type constants; string form is given in eventTypeMap.
// EventUnknown covers every type this service acknowledges without acting on.
const (
	EventUnknown EventType = iota
	UserCreated
	UserUpdated
	UserDeleted
)

// eventTypeMap maps string representations to EventType enums.
// This is the single source of truth for handled event type strings.
var eventTypeMap = map[string]EventType{
	"user.created": UserCreated,
	"user.updated": UserUpdated,
	"user.deleted": UserDeleted,
}

// reverseEventTypeMap maps EventType enums to string representations.
var reverseEventTypeMap map[EventType]string

func init() {
	reverseEventTypeMap = make(map[EventType]string, len(eventTypeMap))
	for str, eventType := range eventTypeMap {
		reverseEventTypeMap[eventType] = str
	}
}

// String returns the string representation of an EventType.
// Returns "unknown" for EventUnknown and out-of-range values.
func (et EventType) String() string {
	str, ok := reverseEventTypeMap[et]
	if !ok {
		return "unknown"
	}

	return str
}

// ParseEventType converts a string to an EventType enum.
// Returns EventUnknown and false for types this service does not handle.
func ParseEventType(s string) (EventType, bool) {
	et, ok := eventTypeMap[s]
	if !ok {
		return EventUnknown, false
	}

	return et, true
}

// IsHandledEventType reports whether s is one of the user lifecycle events this service syncs.
func IsHandledEventType(s string) bool {
	_, ok := eventTypeMap[s]

	return ok
}
