package capi

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leadcast-lab/leadcast/internal/core/identity"
)

// EventName is a stage of the sales funnel, as understood by the
// Conversions API destination.
type EventName string

const (
	EventLead     EventName = "Lead"
	EventContact  EventName = "Contact"
	EventSchedule EventName = "Schedule"
	EventPurchase EventName = "Purchase"
)

// KnownEventNames lists the funnel stages in order.
var KnownEventNames = []EventName{EventLead, EventContact, EventSchedule, EventPurchase}

// ParseEventName validates a funnel stage name.
func ParseEventName(s string) (EventName, error) {
	for _, n := range KnownEventNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown event name %q", s)
}

// NewEventID generates a provider deduplication key. The prefix names the
// funnel stage so the keys read well in the provider's event manager.
func NewEventID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().Unix(), raw[:12])
}

// ActionSource describes where the conversion physically happened.
type ActionSource string

const (
	SourceWebsite         ActionSource = "website"
	SourceSystemGenerated ActionSource = "system_generated"
)

// LogicalEvent is the caller-facing description of one conversion. The
// pipeline turns it into a provider-shaped event and fans it out to every
// active destination.
type LogicalEvent struct {
	// EventName is required; everything else degrades gracefully.
	EventName EventName

	// EventTime is a Unix timestamp. Zero or negative means "now".
	EventTime int64

	// EventID is the provider-side deduplication key. Blank is allowed; the
	// provider then treats the event as non-deduplicable. Supplying a stable
	// key is the caller's responsibility.
	EventID string

	EventSourceURL string
	ActionSource   ActionSource

	// TestEventCode routes the event to the provider's test console instead
	// of the live dataset.
	TestEventCode string

	User identity.RawIdentity

	// Custom carries provider custom_data. Nil and empty-string values are
	// dropped before transmission.
	Custom map[string]any
}
