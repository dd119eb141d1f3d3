package recordsync

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmap-service/internal/domain/parking"
)

type memStore struct {
	markers   []parking.Marker
	counts    map[string]parking.AreaCount
	insertErr error
	deleteErr error
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{counts: map[string]parking.AreaCount{}}
}

func (s *memStore) DeleteMarkers(_ context.Context, siteID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.markers = slices.DeleteFunc(s.markers, func(m parking.Marker) bool { return m.SiteID == siteID })
	return nil
}

func (s *memStore) InsertMarkers(_ context.Context, markers []parking.Marker) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.markers = append(s.markers, markers...)
	return nil
}

func (s *memStore) UpsertAreaCount(_ context.Context, c parking.AreaCount) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.counts[c.SiteID] = c
	return nil
}

func (s *memStore) site(id string) []parking.Marker {
	var out []parking.Marker
	for _, m := range s.markers {
		if m.SiteID == id {
			out = append(out, m)
		}
	}
	return out
}

// txStore rolls back to a snapshot when fn fails.
type txStore struct {
	*memStore
	txCalls int
}

func (s *txStore) InTx(_ context.Context, fn func(Store) error) error {
	s.txCalls++
	snapshot, counts := slices.Clone(s.markers), maps.Clone(s.counts)
	if err := fn(s.memStore); err != nil {
		s.markers, s.counts = snapshot, counts
		return err
	}
	return nil
}

func markers(site string, plates ...string) []parking.Marker {
	out := make([]parking.Marker, len(plates))
	for i, p := range plates {
		out[i] = parking.Marker{SiteID: site, Index: i, PlateText: p, X: float64(i * 10)}
	}
	return out
}

func TestReplaceMarkers_Idempotent(t *testing.T) {
	store := newMemStore()
	s := New(store, zerolog.Nop())
	ctx := context.Background()

	m := markers("A01", "ABC123", "XYZ789")
	require.NoError(t, s.ReplaceMarkers(ctx, "A01", m))
	require.NoError(t, s.ReplaceMarkers(ctx, "A01", m))

	assert.Equal(t, m, store.site("A01"))
}

func TestReplaceMarkers_SupersedesPreviousGeneration(t *testing.T) {
	store := newMemStore()
	s := New(store, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.ReplaceMarkers(ctx, "A01", markers("A01", "OLD1", "OLD2", "OLD3")))
	require.NoError(t, s.ReplaceMarkers(ctx, "A02", markers("A02", "OTHER")))
	m2 := markers("A01", "NEW1")
	require.NoError(t, s.ReplaceMarkers(ctx, "A01", m2))

	assert.Equal(t, m2, store.site("A01"))
	assert.Len(t, store.site("A02"), 1)
}

func TestReplaceMarkers_EmptyClearsSite(t *testing.T) {
	store := newMemStore()
	s := New(store, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.ReplaceMarkers(ctx, "A01", markers("A01", "ONE")))
	require.NoError(t, s.ReplaceMarkers(ctx, "A01", nil))
	assert.Empty(t, store.site("A01"))
}

func TestReplaceMarkers_StampsSite(t *testing.T) {
	store := newMemStore()
	s := New(store, zerolog.Nop())

	m := markers("", "ABC")
	require.NoError(t, s.ReplaceMarkers(context.Background(), "B07", m))
	assert.Equal(t, "B07", store.markers[0].SiteID)
	assert.Equal(t, "", m[0].SiteID, "input slice must not be modified")
}

func TestReplaceMarkers_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	store := newMemStore()
	store.insertErr = boom
	s := New(store, zerolog.Nop())

	err := s.ReplaceMarkers(context.Background(), "A01", markers("A01", "ABC"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, boom)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert markers", se.Op)
}

func TestReplaceMarkers_UsesTransaction(t *testing.T) {
	boom := errors.New("insert failed")
	mem := newMemStore()
	store := &txStore{memStore: mem}
	s := New(store, zerolog.Nop())
	ctx := context.Background()

	previous := markers("A01", "KEEP")
	require.NoError(t, s.ReplaceMarkers(ctx, "A01", previous))
	assert.Equal(t, 1, store.txCalls)

	mem.insertErr = boom
	err := s.ReplaceMarkers(ctx, "A01", markers("A01", "LOST"))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Equal(t, previous, mem.site("A01"), "failed replace must roll back the delete")
}

func TestUpsertAreaCount_Idempotent(t *testing.T) {
	store := newMemStore()
	s := New(store, zerolog.Nop())
	ctx := context.Background()
	at := time.Date(2025, 7, 12, 8, 30, 0, 0, time.FixedZone("CST", 8*3600))

	require.NoError(t, s.UpsertAreaCount(ctx, "A01", 4, "a01_0800.jpg", at))
	first := store.counts["A01"]
	require.NoError(t, s.UpsertAreaCount(ctx, "A01", 4, "a01_0800.jpg", at))

	assert.Equal(t, first, store.counts["A01"])
	assert.Len(t, store.counts, 1)
	assert.Equal(t, at.UTC(), first.ObservedAt)

	require.NoError(t, s.UpsertAreaCount(ctx, "A01", 2, "a01_0900.jpg", at.Add(time.Hour)))
	assert.Equal(t, 2, store.counts["A01"].Count)
	assert.Len(t, store.counts, 1)
}

func TestCommit(t *testing.T) {
	store := newMemStore()
	s := New(store, zerolog.Nop())
	at := time.Unix(1752300000, 0)

	require.NoError(t, s.Commit(context.Background(), "A03", markers("A03", "A", "B", "C"), "img.jpg", at))
	assert.Len(t, store.site("A03"), 3)
	assert.Equal(t, parking.AreaCount{SiteID: "A03", Count: 3, SourceImage: "img.jpg", ObservedAt: at.UTC()}, store.counts["A03"])
}

func TestCommit_StopsOnReplaceFailure(t *testing.T) {
	store := newMemStore()
	store.deleteErr = errors.New("timeout")
	s := New(store, zerolog.Nop())

	err := s.Commit(context.Background(), "A03", markers("A03", "A"), "img.jpg", time.Now())
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Empty(t, store.counts)
}

func TestCommit_CountFailureRollsBackMarkers(t *testing.T) {
	boom := errors.New("connection reset")
	mem := newMemStore()
	store := &txStore{memStore: mem}
	s := New(store, zerolog.Nop())
	ctx := context.Background()
	at := time.Unix(1752300000, 0)

	previous := markers("A01", "OLD1", "OLD2")
	require.NoError(t, s.Commit(ctx, "A01", previous, "old.jpg", at))
	assert.Equal(t, 1, store.txCalls)

	mem.upsertErr = boom
	err := s.Commit(ctx, "A01", markers("A01", "N1", "N2", "N3"), "new.jpg", at.Add(time.Hour))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrStoreFailure)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upsert area count", se.Op)

	assert.Equal(t, previous, mem.site("A01"))
	assert.Equal(t, 2, mem.counts["A01"].Count)
	assert.Equal(t, "old.jpg", mem.counts["A01"].SourceImage)
}
