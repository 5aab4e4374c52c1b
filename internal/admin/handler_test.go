package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
	storagemocks "github.com/leadcast-lab/leadcast/internal/mocks/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "secret-key"

type fixture struct {
	leads     *storagemocks.LeadStore
	dests     *storagemocks.DestinationStore
	googleAds *storagemocks.GoogleAdsStore
	router    *gin.Engine
	provider  *recordingProvider
}

// recordingProvider fakes the Graph endpoint and captures every envelope.
type recordingProvider struct {
	srv *httptest.Server

	mu        sync.Mutex
	envelopes []capi.Envelope
}

func newRecordingProvider(t *testing.T) *recordingProvider {
	t.Helper()
	p := &recordingProvider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env capi.Envelope
		json.NewDecoder(r.Body).Decode(&env)
		p.mu.Lock()
		p.envelopes = append(p.envelopes, env)
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events_received":1}`))
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *recordingProvider) last(t *testing.T) capi.ProviderEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.envelopes)
	env := p.envelopes[len(p.envelopes)-1]
	require.Len(t, env.Data, 1)
	return env.Data[0]
}

func newFixture(t *testing.T, policy ActivationPolicy) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := newRecordingProvider(t)
	f := &fixture{
		leads: &storagemocks.LeadStore{},
		dests: &storagemocks.DestinationStore{
			Active: []capi.Destination{{PixelID: "111", AccessToken: "tok", Active: true}},
		},
		googleAds: &storagemocks.GoogleAdsStore{},
		provider:  provider,
	}

	dispatcher := capi.NewDispatcher(capi.DispatcherConfig{BaseURL: provider.srv.URL}, nil)
	svc := NewService(f.leads, f.dests, f.googleAds, dispatcher, testAPIKey, 7, policy, "")

	f.router = gin.New()
	svc.RegisterRoutes(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func storedLead() *v1.Lead {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &v1.Lead{
		ID:          7,
		Name:        "Seán Murphy",
		Email:       "sean@example.ie",
		PhoneDigits: "353871234567",
		County:      "Cork",
		ServiceType: "deep_clean",
		PageURL:     "https://example.ie/booking",
		LeadEvent:   v1.ConversionState{EventID: "lead_orig_1", Sent: true},
		CreatedAt:   now,
	}
}

func withLead(f *fixture, lead *v1.Lead) {
	f.leads.GetByIDFunc = func(ctx context.Context, id int64) (*v1.Lead, error) {
		if id == lead.ID {
			return lead, nil
		}
		return nil, storage.ErrNotFound
	}
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/leads", nil)
		resp := httptest.NewRecorder()
		f.router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/leads", nil)
		req.Header.Set("X-API-Key", "nope")
		resp := httptest.NewRecorder()
		f.router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("bearer token accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/leads", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		resp := httptest.NewRecorder()
		f.router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusOK, resp.Code)
	})
}

func TestListLeads_StageFilterAndDerivedStage(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	lead := storedLead()
	var gotFilter storage.LeadFilter
	f.leads.ListFunc = func(ctx context.Context, filter storage.LeadFilter) ([]*v1.Lead, error) {
		gotFilter = filter
		return []*v1.Lead{lead}, nil
	}

	resp := f.do(t, http.MethodGet, "/v1/admin/leads?stage=lead&search=sean&limit=10", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, v1.StageLead, gotFilter.Stage)
	require.Equal(t, "sean", gotFilter.Search)
	require.Equal(t, 10, gotFilter.Limit)
	require.Contains(t, resp.Body.String(), `"stage":"lead"`)

	resp = f.do(t, http.MethodGet, "/v1/admin/leads?stage=bogus", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSchedule_DeliversSystemGeneratedWithValue(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	lead := storedLead()
	withLead(f, lead)
	f.leads.SetScheduleFunc = func(ctx context.Context, id int64, scheduledFor string, value decimal.Decimal) error {
		lead.ScheduledFor = scheduledFor
		lead.ScheduledValue = value
		at := time.Now().UTC()
		lead.ScheduledAt = &at
		return nil
	}

	resp := f.do(t, http.MethodPost, "/v1/admin/leads/7/schedule", map[string]any{
		"scheduled_for": "2026-09-01",
		"value":         "150.00",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	evt := f.provider.last(t)
	require.Equal(t, "Schedule", evt.EventName)
	require.Equal(t, "system_generated", evt.ActionSource)
	require.Equal(t, float64(150), evt.CustomData["value"])
	require.Equal(t, "EUR", evt.CustomData["currency"])

	require.Len(t, f.leads.Conversions, 1)
	require.Equal(t, v1.StageSchedule, f.leads.Conversions[0].Stage)
	require.True(t, f.leads.Conversions[0].State.Sent)
}

func TestSchedule_ZeroValueOmitsValue(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	lead := storedLead()
	withLead(f, lead)
	f.leads.SetScheduleFunc = func(ctx context.Context, id int64, scheduledFor string, value decimal.Decimal) error {
		lead.ScheduledFor = scheduledFor
		lead.ScheduledValue = value
		return nil
	}

	resp := f.do(t, http.MethodPost, "/v1/admin/leads/7/schedule", map[string]any{
		"scheduled_for": "2026-09-01",
		"value":         "0",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	evt := f.provider.last(t)
	require.NotContains(t, evt.CustomData, "value")
	require.NotContains(t, evt.CustomData, "currency")
}

func TestSchedule_Validation(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})
	withLead(f, storedLead())

	resp := f.do(t, http.MethodPost, "/v1/admin/leads/7/schedule", map[string]any{
		"scheduled_for": "01/09/2026",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = f.do(t, http.MethodPost, "/v1/admin/leads/7/schedule", map[string]any{
		"scheduled_for": "2026-09-01",
		"value":         "-5",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPurchase_DeliversValue(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	lead := storedLead()
	withLead(f, lead)
	f.leads.SetPurchaseFunc = func(ctx context.Context, id int64, value decimal.Decimal, paidAt time.Time) error {
		lead.PaidValue = value
		lead.PaidAt = &paidAt
		return nil
	}

	resp := f.do(t, http.MethodPost, "/v1/admin/leads/7/purchase", map[string]any{"value": "220.50"})
	require.Equal(t, http.StatusOK, resp.Code)

	evt := f.provider.last(t)
	require.Equal(t, "Purchase", evt.EventName)
	require.Equal(t, 220.5, evt.CustomData["value"])

	resp = f.do(t, http.MethodPost, "/v1/admin/leads/7/purchase", map[string]any{"value": "0"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestResend_ReusesStoredEventID(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})
	withLead(f, storedLead())

	resp := f.do(t, http.MethodPost, "/v1/admin/leads/7/resend", map[string]any{"stage": "lead"})
	require.Equal(t, http.StatusOK, resp.Code)

	evt := f.provider.last(t)
	require.Equal(t, "Lead", evt.EventName)
	require.Equal(t, "lead_orig_1", evt.EventID)
	require.Equal(t, "website", evt.ActionSource)
}

func TestResend_StageNotReached(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})
	withLead(f, storedLead())

	resp := f.do(t, http.MethodPost, "/v1/admin/leads/7/resend", map[string]any{"stage": "purchase"})
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestBulkResend_PerLeadIsolation(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	good := storedLead()
	f.leads.ListIDsForResendFunc = func(ctx context.Context, filter storage.ResendFilter) ([]int64, error) {
		require.Equal(t, v1.StageLead, filter.Stage)
		require.True(t, filter.OnlyFailed)
		return []int64{7, 404}, nil
	}
	f.leads.GetByIDFunc = func(ctx context.Context, id int64) (*v1.Lead, error) {
		if id == 7 {
			return good, nil
		}
		return nil, storage.ErrNotFound
	}

	resp := f.do(t, http.MethodPost, "/v1/admin/resend", map[string]any{
		"stage":       "lead",
		"only_failed": true,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Processed int `json:"processed"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, 2, body.Processed)
	require.Equal(t, 1, body.Succeeded)
	require.Equal(t, 1, body.Failed)
}

func TestBulkResend_PaginationCursor(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	lead := storedLead()
	f.leads.ListIDsForResendFunc = func(ctx context.Context, filter storage.ResendFilter) ([]int64, error) {
		return []int64{7, 7}, nil
	}
	withLead(f, lead)

	resp := f.do(t, http.MethodPost, "/v1/admin/resend", map[string]any{"stage": "lead", "limit": 2})
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, float64(2), body["next_offset"])
}

func TestExport_JSONLPerReachedStage(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	lead := storedLead()
	contactedAt := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	lead.ContactedAt = &contactedAt
	lead.ContactEvent = v1.ConversionState{EventID: "contact_orig_1", Sent: true}

	f.leads.ListSinceFunc = func(ctx context.Context, since time.Time, limit int) ([]*v1.Lead, error) {
		return []*v1.Lead{lead}, nil
	}

	resp := f.do(t, http.MethodGet, "/v1/admin/export", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Header().Get("Content-Type"), "ndjson")

	lines := bytes.Split(bytes.TrimSpace(resp.Body.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first capi.ProviderEvent
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.Equal(t, "Lead", first.EventName)
	// Identity fields leave the system hashed, 64 hex chars.
	require.Len(t, first.UserData.Email, 1)
	require.Len(t, first.UserData.Email[0], 64)

	var second capi.ProviderEvent
	require.NoError(t, json.Unmarshal(lines[1], &second))
	require.Equal(t, "Contact", second.EventName)
	require.Equal(t, "contact_orig_1", second.EventID)
}

func TestExport_DaysOutOfRange(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})
	resp := f.do(t, http.MethodGet, "/v1/admin/export?days=30", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDestinations_CreateAndSingleActive(t *testing.T) {
	f := newFixture(t, ActivationPolicy{EnforceSingleActive: true})
	f.dests.Rows = []storage.PixelRow{
		{ID: 1, PixelID: "111", AccessToken: "tok1", Active: true},
	}

	resp := f.do(t, http.MethodPost, "/v1/admin/destinations", map[string]any{
		"pixel_id":     "222",
		"access_token": "tok2",
		"active":       true,
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	require.True(t, f.dests.Deactivated)
	require.False(t, f.dests.Rows[0].Active)
}

func TestDestinations_CreateValidation(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})
	resp := f.do(t, http.MethodPost, "/v1/admin/destinations", map[string]any{"pixel_id": "222"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDestinations_CannotDeactivateLastActive(t *testing.T) {
	f := newFixture(t, ActivationPolicy{AutoRecovery: true})
	f.dests.Rows = []storage.PixelRow{
		{ID: 1, PixelID: "111", AccessToken: "tok1", Active: true},
	}

	resp := f.do(t, http.MethodPost, "/v1/admin/destinations/1/deactivate", nil)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.True(t, f.dests.Rows[0].Active)
}

func TestDestinations_DeleteActiveAutoRecovers(t *testing.T) {
	f := newFixture(t, ActivationPolicy{AutoRecovery: true})
	f.dests.Rows = []storage.PixelRow{
		{ID: 1, PixelID: "111", AccessToken: "tok1", Active: false},
		{ID: 2, PixelID: "222", AccessToken: "tok2", Active: true},
	}

	resp := f.do(t, http.MethodDelete, "/v1/admin/destinations/2", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"recovered_pixel_id":"111"`)
	require.Len(t, f.dests.Rows, 1)
	require.True(t, f.dests.Rows[0].Active)
}

func TestDestinations_ListNeverLeaksTokens(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})
	f.dests.Rows = []storage.PixelRow{
		{ID: 1, PixelID: "111", AccessToken: "super-secret", Active: true},
	}

	resp := f.do(t, http.MethodGet, "/v1/admin/destinations", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotContains(t, resp.Body.String(), "super-secret")
}

func TestGoogleAds_CreateActivateDelete(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})

	resp := f.do(t, http.MethodPost, "/v1/admin/google-ads", map[string]any{
		"tag_name":      "main",
		"conversion_id": "AW-123",
		"lead_label":    "abc",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = f.do(t, http.MethodPost, "/v1/admin/google-ads/1/activate", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.True(t, f.googleAds.Tags[0].Active)

	resp = f.do(t, http.MethodDelete, "/v1/admin/google-ads/1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, f.googleAds.Tags)
}

func TestTrackingHealth(t *testing.T) {
	f := newFixture(t, ActivationPolicy{})
	f.dests.Rows = []storage.PixelRow{
		{ID: 1, PixelID: "111", AccessToken: "tok", Active: true},
		{ID: 2, PixelID: "222", AccessToken: "tok", Active: false},
	}
	f.googleAds.Tags = []storage.GoogleAdsTag{
		{ID: 1, TagName: "main", ConversionID: "AW-123", Active: true},
	}

	resp := f.do(t, http.MethodGet, "/v1/admin/tracking/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Delivering   bool `json:"delivering"`
		Destinations struct {
			Total  int `json:"total"`
			Active int `json:"active"`
		} `json:"destinations"`
		GoogleAds struct {
			ActiveTag string `json:"active_tag"`
		} `json:"google_ads"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.True(t, body.Delivering)
	require.Equal(t, 2, body.Destinations.Total)
	require.Equal(t, 1, body.Destinations.Active)
	require.Equal(t, "main", body.GoogleAds.ActiveTag)
}
