package capi

import (
	"time"

	"github.com/leadcast-lab/leadcast/internal/core/identity"
)

// UserData is the provider's hashed identity block. Personal fields carry
// SHA-256 digests; fbp/fbc/ip/ua are opaque tokens the provider requires
// unhashed. Empty fields are omitted from the wire entirely.
type UserData struct {
	Email      []string `json:"em,omitempty"`
	Phone      []string `json:"ph,omitempty"`
	FirstName  string   `json:"fn,omitempty"`
	LastName   string   `json:"ln,omitempty"`
	Zip        string   `json:"zp,omitempty"`
	City       string   `json:"ct,omitempty"`
	State      string   `json:"st,omitempty"`
	Country    string   `json:"country,omitempty"`
	ExternalID []string `json:"external_id,omitempty"`

	FBP             string `json:"fbp,omitempty"`
	FBC             string `json:"fbc,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
}

// ProviderEvent is one event as the Conversions API expects it.
type ProviderEvent struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	ActionSource   string         `json:"action_source"`
	EventSourceURL string         `json:"event_source_url"`
	UserData       UserData       `json:"user_data"`
	CustomData     map[string]any `json:"custom_data"`
	EventID        string         `json:"event_id,omitempty"`
}

// Envelope is the request body POSTed to a destination.
type Envelope struct {
	Data          []ProviderEvent `json:"data"`
	PartnerAgent  string          `json:"partner_agent"`
	TestEventCode string          `json:"test_event_code,omitempty"`
}

// BuildUserData runs the raw identity through normalization and hashing and
// assembles the provider's user_data block. Fields whose hash comes out
// empty are left out rather than sent as empty strings.
func BuildUserData(raw identity.RawIdentity) UserData {
	n := identity.Normalize(raw)

	var ud UserData

	if h := identity.HashField(n.Email, identity.ModeEmail); h != "" {
		ud.Email = []string{h}
	}
	if h := identity.HashField(n.Phone, identity.ModePhone); h != "" {
		ud.Phone = []string{h}
	}
	ud.FirstName = identity.HashField(n.FirstName, identity.ModeString)
	ud.LastName = identity.HashField(n.LastName, identity.ModeString)
	ud.Zip = identity.HashField(n.Zip, identity.ModeZip)
	ud.City = identity.HashField(n.City, identity.ModeString)
	ud.State = identity.HashField(n.State, identity.ModeString)
	ud.Country = identity.HashField(n.Country, identity.ModeCountry)
	if h := identity.HashField(n.ExternalID, identity.ModeString); h != "" {
		ud.ExternalID = []string{h}
	}

	ud.FBP = n.FBP
	ud.FBC = n.FBC
	ud.ClientIPAddress = n.ClientIP
	ud.ClientUserAgent = n.ClientUserAgent

	return ud
}

// cleanCustom shallow-copies custom data, dropping keys whose value is nil
// or an empty string. Always returns a non-nil map so custom_data marshals
// as an object, never null.
func cleanCustom(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// BuildEvent assembles the provider-shaped event from a logical event.
// EventTime defaults to the current time when absent or non-positive.
func BuildEvent(evt LogicalEvent) ProviderEvent {
	eventTime := evt.EventTime
	if eventTime <= 0 {
		eventTime = time.Now().Unix()
	}

	actionSource := evt.ActionSource
	if actionSource == "" {
		actionSource = SourceWebsite
	}

	return ProviderEvent{
		EventName:      string(evt.EventName),
		EventTime:      eventTime,
		ActionSource:   string(actionSource),
		EventSourceURL: evt.EventSourceURL,
		UserData:       BuildUserData(evt.User),
		CustomData:     cleanCustom(evt.Custom),
		EventID:        evt.EventID,
	}
}
