// Package recordsync commits one image run's markers for a site and keeps
// the per-site marker count current.
package recordsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parkmap-service/internal/domain/parking"
)

var ErrStoreFailure = errors.New("store failure")

// StoreError wraps an error returned by the persistence layer without
// interpreting it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreFailure, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreFailure, e.Err} }

type Store interface {
	DeleteMarkers(ctx context.Context, siteID string) error
	InsertMarkers(ctx context.Context, markers []parking.Marker) error
	UpsertAreaCount(ctx context.Context, count parking.AreaCount) error
}

// TxStore is a Store that can run several operations atomically.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

type Synchronizer struct {
	store Store
	log   zerolog.Logger
}

func New(store Store, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{store: store, log: log}
}

// ReplaceMarkers removes every stored marker of the site and inserts the
// new generation. It is a full replace, never a merge.
func (s *Synchronizer) ReplaceMarkers(ctx context.Context, siteID string, markers []parking.Marker) error {
	rows := stampSite(siteID, markers)
	if err := s.atomically(ctx, "replace markers", func(st Store) error {
		return replaceMarkers(ctx, st, siteID, rows)
	}); err != nil {
		return err
	}

	s.log.Debug().
		Str("site_id", siteID).
		Int("markers", len(rows)).
		Msg("replaced site markers")
	return nil
}

// UpsertAreaCount writes the single count row of a site. The timestamp comes
// from the source image so repeating a call leaves identical state.
func (s *Synchronizer) UpsertAreaCount(ctx context.Context, siteID string, count int, sourceImage string, observedAt time.Time) error {
	return upsertAreaCount(ctx, s.store, siteID, count, sourceImage, observedAt)
}

// Commit replaces the site's markers and refreshes its count as one unit:
// with a TxStore either both land or neither does.
func (s *Synchronizer) Commit(ctx context.Context, siteID string, markers []parking.Marker, sourceImage string, observedAt time.Time) error {
	rows := stampSite(siteID, markers)
	if err := s.atomically(ctx, "commit site", func(st Store) error {
		if err := replaceMarkers(ctx, st, siteID, rows); err != nil {
			return err
		}
		return upsertAreaCount(ctx, st, siteID, len(rows), sourceImage, observedAt)
	}); err != nil {
		return err
	}

	s.log.Debug().
		Str("site_id", siteID).
		Int("markers", len(rows)).
		Str("source_image", sourceImage).
		Msg("committed site")
	return nil
}

// atomically runs fn in a store transaction when the store supports one.
// Errors not already typed are wrapped as op.
func (s *Synchronizer) atomically(ctx context.Context, op string, fn func(Store) error) error {
	tx, ok := s.store.(TxStore)
	if !ok {
		return fn(s.store)
	}
	err := tx.InTx(ctx, fn)
	var se *StoreError
	if err != nil && !errors.As(err, &se) {
		err = &StoreError{Op: op, Err: err}
	}
	return err
}

func stampSite(siteID string, markers []parking.Marker) []parking.Marker {
	rows := make([]parking.Marker, len(markers))
	for i, m := range markers {
		m.SiteID = siteID
		rows[i] = m
	}
	return rows
}

func replaceMarkers(ctx context.Context, st Store, siteID string, rows []parking.Marker) error {
	if err := st.DeleteMarkers(ctx, siteID); err != nil {
		return &StoreError{Op: "delete markers", Err: err}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := st.InsertMarkers(ctx, rows); err != nil {
		return &StoreError{Op: "insert markers", Err: err}
	}
	return nil
}

func upsertAreaCount(ctx context.Context, st Store, siteID string, count int, sourceImage string, observedAt time.Time) error {
	row := parking.AreaCount{
		SiteID:      siteID,
		Count:       count,
		SourceImage: sourceImage,
		ObservedAt:  observedAt.UTC(),
	}
	if err := st.UpsertAreaCount(ctx, row); err != nil {
		return &StoreError{Op: "upsert area count", Err: err}
	}
	return nil
}
