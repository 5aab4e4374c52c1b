package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Destination is one set of ad-account credentials. Every active destination
// independently receives the same event.
type Destination struct {
	PixelID     string
	Name        string
	AccessToken string
	Active      bool
}

// Delivery failure reasons surfaced in DeliveryResult.Error.
const (
	ReasonNoActiveDestination = "no_active_destination"
	ReasonMissingCredentials  = "missing_pixel_or_token"
)

// DeliveryOutcome records how one destination handled the event.
type DeliveryOutcome struct {
	PixelID string `json:"pixel_id"`
	OK      bool   `json:"ok"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`

	// Body holds a bounded excerpt of the response body, captured on
	// failure only.
	Body string `json:"body,omitempty"`
}

// DeliveryResult aggregates the per-destination outcomes of one delivery.
//
// OK follows the at-least-one policy: destinations are independent ad
// accounts, so one account's failure must not read as total pipeline
// failure. Callers that need stricter semantics can inspect Failed.
type DeliveryResult struct {
	OK        bool              `json:"ok"`
	Error     string            `json:"error,omitempty"`
	Outcomes  []DeliveryOutcome `json:"results,omitempty"`
	Succeeded int               `json:"success_count"`
	Failed    int               `json:"failure_count"`
}

// AuditEntry is one line of the append-only delivery log. Never contains
// access tokens.
type AuditEntry struct {
	Time      time.Time
	EventName string
	EventID   string
	PixelID   string
	Status    int
	OK        bool
	Error     string
}

// AuditSink receives one entry per delivery outcome.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// DispatcherConfig carries the provider-protocol knobs.
type DispatcherConfig struct {
	// BaseURL of the Graph API. Defaults to the production endpoint;
	// overridden in tests.
	BaseURL string

	GraphVersion string
	PartnerAgent string

	// Timeout bounds each outbound call.
	Timeout time.Duration

	// Concurrency > 1 fans destinations out in parallel with outcome order
	// preserved. 1 (the default) keeps the sequential reference behavior.
	Concurrency int

	// ExcerptLimit bounds the response-body excerpt kept on failure.
	ExcerptLimit int
}

const (
	defaultBaseURL      = "https://graph.facebook.com"
	defaultGraphVersion = "v20.0"
	defaultTimeout      = 8 * time.Second
	defaultExcerptLimit = 800
	maxResponseBytes    = 1 << 20
)

// Dispatcher delivers built events to every active destination.
type Dispatcher struct {
	client       *http.Client
	baseURL      string
	graphVersion string
	partnerAgent string
	concurrency  int
	excerptLimit int
	audit        AuditSink
}

// NewDispatcher builds a Dispatcher. A nil audit sink disables the delivery
// log but never delivery itself.
func NewDispatcher(cfg DispatcherConfig, audit AuditSink) *Dispatcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = defaultGraphVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = defaultExcerptLimit
	}

	return &Dispatcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		graphVersion: cfg.GraphVersion,
		partnerAgent: cfg.PartnerAgent,
		concurrency:  cfg.Concurrency,
		excerptLimit: cfg.ExcerptLimit,
		audit:        audit,
	}
}

// Deliver builds the provider event once and sends it to every destination,
// collecting a per-destination outcome. It never returns an error for
// business-data reasons; transport and provider failures are folded into the
// result. Safe to invoke repeatedly for the same logical event — dedup is the
// provider's job via event_id.
func (d *Dispatcher) Deliver(ctx context.Context, evt LogicalEvent, dests []Destination) DeliveryResult {
	if len(dests) == 0 {
		slog.Warn("capi: no active destination", "event_name", evt.EventName, "event_id", evt.EventID)
		return DeliveryResult{OK: false, Error: ReasonNoActiveDestination}
	}

	// Identity hashing does not vary per destination, so build once.
	event := BuildEvent(evt)

	envelope := Envelope{
		Data:          []ProviderEvent{event},
		PartnerAgent:  d.partnerAgent,
		TestEventCode: evt.TestEventCode,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		// Only unmarshalable custom_data values can get here.
		slog.Error("capi: failed to encode envelope", "event_name", evt.EventName, "error", err)
		return DeliveryResult{OK: false, Error: "encode_failed"}
	}

	outcomes := make([]DeliveryOutcome, len(dests))

	if d.concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.concurrency)
		for i, dest := range dests {
			g.Go(func() error {
				outcomes[i] = d.sendOne(gctx, dest, payload)
				return nil
			})
		}
		// Workers never return errors; failures live in the outcomes.
		_ = g.Wait()
	} else {
		for i, dest := range dests {
			outcomes[i] = d.sendOne(ctx, dest, payload)
		}
	}

	result := DeliveryResult{Outcomes: outcomes}
	for _, out := range outcomes {
		if out.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
		d.record(ctx, evt, out)
	}
	result.OK = result.Succeeded > 0

	if !result.OK {
		slog.Error("capi: delivery failed on all destinations",
			"event_name", evt.EventName,
			"event_id", evt.EventID,
			"destinations", len(dests))
	}

	return result
}

// sendOne POSTs the payload to a single destination and classifies the
// outcome. Success requires transport success, a 2xx status and no provider
// error object in the response body.
func (d *Dispatcher) sendOne(ctx context.Context, dest Destination, payload []byte) DeliveryOutcome {
	pixelID := strings.TrimSpace(dest.PixelID)
	token := strings.TrimSpace(dest.AccessToken)
	if pixelID == "" || token == "" {
		return DeliveryOutcome{PixelID: pixelID, OK: false, Error: ReasonMissingCredentials}
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		d.baseURL, d.graphVersion, url.PathEscape(pixelID), url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return DeliveryOutcome{PixelID: pixelID, OK: false, Error: redactToken(err.Error(), token)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryOutcome{PixelID: pixelID, OK: false, Error: redactToken(err.Error(), token)}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return DeliveryOutcome{
			PixelID: pixelID,
			OK:      false,
			Status:  resp.StatusCode,
			Error:   "response_read_failed: " + readErr.Error(),
		}
	}

	outcome := DeliveryOutcome{PixelID: pixelID, Status: resp.StatusCode}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome.Error = providerErrorMessage(body)
		outcome.Body = truncate(string(body), d.excerptLimit)
		return outcome
	}

	// A 2xx with an error object in the body still counts as failure.
	if msg := providerErrorMessage(body); msg != "" {
		outcome.Error = msg
		outcome.Body = truncate(string(body), d.excerptLimit)
		return outcome
	}

	outcome.OK = true
	return outcome
}

func (d *Dispatcher) record(ctx context.Context, evt LogicalEvent, out DeliveryOutcome) {
	if d.audit == nil {
		return
	}
	d.audit.Record(ctx, AuditEntry{
		Time:      time.Now().UTC(),
		EventName: string(evt.EventName),
		EventID:   evt.EventID,
		PixelID:   out.PixelID,
		Status:    out.Status,
		OK:        out.OK,
		Error:     out.Error,
	})
}

// providerErrorMessage extracts the message of a top-level error object, if
// the body parses as JSON and carries one.
func providerErrorMessage(body []byte) string {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Non-JSON failure bodies are kept as the excerpt only.
		return "unparseable_response"
	}
	if parsed.Error == nil {
		return ""
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("provider_error_code_%d", parsed.Error.Code)
}

// redactToken keeps secrets out of transport error strings, which embed the
// full request URL.
func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "[redacted]")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
