package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/stretchr/testify/require"
)

type fakeLogStore struct {
	entries []capi.AuditEntry
	err     error
}

func (f *fakeLogStore) Append(ctx context.Context, entry capi.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func TestSink_AppendsToStore(t *testing.T) {
	store := &fakeLogStore{}
	sink := NewSink(store)

	entry := capi.AuditEntry{
		Time:      time.Now().UTC(),
		EventName: "Lead",
		EventID:   "lead_1",
		PixelID:   "111",
		Status:    200,
		OK:        true,
	}
	sink.Record(context.Background(), entry)

	require.Len(t, store.entries, 1)
	require.Equal(t, "lead_1", store.entries[0].EventID)
}

func TestSink_StoreFailureDoesNotPanic(t *testing.T) {
	sink := NewSink(&fakeLogStore{err: errors.New("db down")})
	sink.Record(context.Background(), capi.AuditEntry{EventID: "lead_2", Error: "boom"})
}

func TestSink_NilStoreIsLogOnly(t *testing.T) {
	sink := NewSink(nil)
	sink.Record(context.Background(), capi.AuditEntry{EventID: "lead_3", OK: true})
}

func TestSink_ImplementsAuditSink(t *testing.T) {
	var _ capi.AuditSink = NewSink(nil)
}
