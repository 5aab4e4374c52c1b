package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/leadcast-lab/leadcast/internal/api/v1"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
	storagemocks "github.com/leadcast-lab/leadcast/internal/mocks/storage"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, leads *storagemocks.LeadStore, dests *storagemocks.DestinationStore, baseURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dispatcher := capi.NewDispatcher(capi.DispatcherConfig{BaseURL: baseURL}, nil)
	svc := NewService(leads, dests, dispatcher, 1, "")

	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func newProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events_received":1}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func submission() map[string]any {
	return map[string]any{
		"data": map[string]any{
			"name":         "Máire Ní Bhriain",
			"email":        "maire@example.ie",
			"phone":        "087 123 4567",
			"service_type": "deep_clean",
			"eircode":      "D6W XY00",
			"city":         "Dublin",
			"county":       "Dublin",
		},
		"meta": map[string]any{
			"page_url": "https://example.ie/booking",
			"fbp":      "fb.1.1700000000.1234",
		},
	}
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSubmitLead_Success(t *testing.T) {
	srv := newProviderServer(t)
	leads := &storagemocks.LeadStore{}
	dests := &storagemocks.DestinationStore{
		Active: []capi.Destination{{PixelID: "111", AccessToken: "tok", Active: true}},
	}
	r := newTestRouter(t, leads, dests, srv.URL)

	resp := postJSON(t, r, "/v1/leads", submission())
	require.Equal(t, http.StatusCreated, resp.Code)

	var body struct {
		ID       int64  `json:"id"`
		EventID  string `json:"event_id"`
		Delivery struct {
			OK           bool `json:"ok"`
			SuccessCount int  `json:"success_count"`
		} `json:"delivery"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotZero(t, body.ID)
	require.NotEmpty(t, body.EventID)
	require.True(t, body.Delivery.OK)
	require.Equal(t, 1, body.Delivery.SuccessCount)

	require.Len(t, leads.Inserted, 1)
	lead := leads.Inserted[0]
	require.Equal(t, "Máire Ní Bhriain", lead.Name)
	require.Equal(t, "353871234567", lead.PhoneDigits)
	require.False(t, lead.PhoneNeedsReview)

	require.Len(t, leads.Conversions, 1)
	require.Equal(t, v1.StageLead, leads.Conversions[0].Stage)
	require.True(t, leads.Conversions[0].State.Sent)
	require.Equal(t, body.EventID, leads.Conversions[0].State.EventID)
}

func TestSubmitLead_BrowserSuppliedEventIDWins(t *testing.T) {
	srv := newProviderServer(t)
	leads := &storagemocks.LeadStore{}
	dests := &storagemocks.DestinationStore{
		Active: []capi.Destination{{PixelID: "111", AccessToken: "tok", Active: true}},
	}
	r := newTestRouter(t, leads, dests, srv.URL)

	payload := submission()
	payload["event_id"] = "lead_pregen_abc"
	resp := postJSON(t, r, "/v1/leads", payload)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "lead_pregen_abc", leads.Conversions[0].State.EventID)
}

func TestSubmitLead_DeliveryFailureStillAccepts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"server busy"}}`))
	}))
	defer srv.Close()

	leads := &storagemocks.LeadStore{}
	dests := &storagemocks.DestinationStore{
		Active: []capi.Destination{{PixelID: "111", AccessToken: "tok", Active: true}},
	}
	r := newTestRouter(t, leads, dests, srv.URL)

	resp := postJSON(t, r, "/v1/leads", submission())
	require.Equal(t, http.StatusCreated, resp.Code)

	require.Len(t, leads.Conversions, 1)
	require.False(t, leads.Conversions[0].State.Sent)
	require.Contains(t, leads.Conversions[0].State.Response, "server busy")
}

func TestSubmitLead_NoDestinationsStillAccepts(t *testing.T) {
	leads := &storagemocks.LeadStore{}
	dests := &storagemocks.DestinationStore{}
	r := newTestRouter(t, leads, dests, "http://127.0.0.1:1")

	resp := postJSON(t, r, "/v1/leads", submission())
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Len(t, leads.Conversions, 1)
	require.False(t, leads.Conversions[0].State.Sent)
}

func TestSubmitLead_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m map[string]any)
		wantErr string
	}{
		{
			name: "missing name",
			mutate: func(m map[string]any) {
				m["data"].(map[string]any)["name"] = ""
			},
			wantErr: "missing_name",
		},
		{
			name: "missing email",
			mutate: func(m map[string]any) {
				m["data"].(map[string]any)["email"] = "  "
			},
			wantErr: "missing_email",
		},
		{
			name: "missing phone",
			mutate: func(m map[string]any) {
				m["data"].(map[string]any)["phone"] = ""
			},
			wantErr: "missing_phone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads := &storagemocks.LeadStore{}
			r := newTestRouter(t, leads, &storagemocks.DestinationStore{}, "http://127.0.0.1:1")

			payload := submission()
			tt.mutate(payload)
			resp := postJSON(t, r, "/v1/leads", payload)

			require.Equal(t, http.StatusBadRequest, resp.Code)
			require.Contains(t, resp.Body.String(), tt.wantErr)
			require.Empty(t, leads.Inserted)
		})
	}
}

func TestSubmitLead_PhonePolicy(t *testing.T) {
	t.Run("too short is rejected", func(t *testing.T) {
		leads := &storagemocks.LeadStore{}
		r := newTestRouter(t, leads, &storagemocks.DestinationStore{}, "http://127.0.0.1:1")

		payload := submission()
		payload["data"].(map[string]any)["phone"] = "12345"
		resp := postJSON(t, r, "/v1/leads", payload)

		require.Equal(t, http.StatusBadRequest, resp.Code)
		require.Contains(t, resp.Body.String(), "invalid_phone")
		require.Empty(t, leads.Inserted)
	})

	t.Run("plausible but unparseable is flagged", func(t *testing.T) {
		srv := newProviderServer(t)
		leads := &storagemocks.LeadStore{}
		dests := &storagemocks.DestinationStore{
			Active: []capi.Destination{{PixelID: "111", AccessToken: "tok", Active: true}},
		}
		r := newTestRouter(t, leads, dests, srv.URL)

		payload := submission()
		payload["data"].(map[string]any)["phone"] = "123 456 7890" // ten digits, no recognizable shape
		resp := postJSON(t, r, "/v1/leads", payload)

		require.Equal(t, http.StatusCreated, resp.Code)
		require.Len(t, leads.Inserted, 1)
		require.True(t, leads.Inserted[0].PhoneNeedsReview)
		require.Equal(t, "1234567890", leads.Inserted[0].PhoneDigits)
	})
}

func TestSubmitLead_InvalidJSON(t *testing.T) {
	r := newTestRouter(t, &storagemocks.LeadStore{}, &storagemocks.DestinationStore{}, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, "/v1/leads", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "invalid_json")
}

func TestSubmitLead_OversizedBody(t *testing.T) {
	r := newTestRouter(t, &storagemocks.LeadStore{}, &storagemocks.DestinationStore{}, "http://127.0.0.1:1")

	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/v1/leads", bytes.NewReader(big))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestContact_Success(t *testing.T) {
	srv := newProviderServer(t)

	stored := &v1.Lead{
		ID:          7,
		Name:        "Old Name",
		Email:       "old@example.ie",
		PhoneDigits: "353871234567",
		PageURL:     "https://example.ie/booking",
	}
	leads := &storagemocks.LeadStore{
		GetByIDFunc: func(ctx context.Context, id int64) (*v1.Lead, error) {
			if id == 7 {
				return stored, nil
			}
			return nil, storage.ErrNotFound
		},
	}
	var gotUpdate storage.ContactUpdate
	leads.MarkContactedFunc = func(ctx context.Context, id int64, at time.Time, upd storage.ContactUpdate) error {
		gotUpdate = upd
		return nil
	}

	dests := &storagemocks.DestinationStore{
		Active: []capi.Destination{{PixelID: "111", AccessToken: "tok", Active: true}},
	}
	r := newTestRouter(t, leads, dests, srv.URL)

	resp := postJSON(t, r, "/v1/contact", map[string]any{
		"lead_id": 7,
		"name":    "New Name",
		"phone":   "086 765 4321",
	})

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "New Name", gotUpdate.Name)
	require.Equal(t, "353867654321", gotUpdate.PhoneDigits)

	require.Len(t, leads.Conversions, 1)
	require.Equal(t, v1.StageContact, leads.Conversions[0].Stage)
	require.True(t, leads.Conversions[0].State.Sent)
}

func TestContact_UnknownLead(t *testing.T) {
	r := newTestRouter(t, &storagemocks.LeadStore{}, &storagemocks.DestinationStore{}, "http://127.0.0.1:1")

	resp := postJSON(t, r, "/v1/contact", map[string]any{"lead_id": 99})
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestContact_MissingLeadID(t *testing.T) {
	r := newTestRouter(t, &storagemocks.LeadStore{}, &storagemocks.DestinationStore{}, "http://127.0.0.1:1")

	resp := postJSON(t, r, "/v1/contact", map[string]any{"name": "X"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "missing_lead_id")
}
