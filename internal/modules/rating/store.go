// README: Rating store over the document store, keyed by driver id.
package rating

import (
	"context"
	"errors"

	"newber/internal/apperr"
	"newber/internal/docstore"
	"newber/internal/types"
)

var ErrNotFound = apperr.New(apperr.ErrNotFound, "rating not found")

type Store struct {
	db docstore.Store
}

func NewStore(db docstore.Store) *Store {
	return &Store{db: db}
}

func newRecord() docstore.Record {
	return docstore.Record{"upvotes": int64(0), "downvotes": int64(0)}
}

func (s *Store) Create(ctx context.Context, driverID types.ID) error {
	return s.db.Put(ctx, Collection, string(driverID), newRecord())
}

func (s *Store) StageCreate(tx docstore.Tx, driverID types.ID) error {
	return tx.Set(Collection, string(driverID), newRecord())
}

func (s *Store) Get(ctx context.Context, driverID types.ID) (Rating, error) {
	rec, err := s.db.Get(ctx, Collection, string(driverID))
	if errors.Is(err, docstore.ErrNotFound) {
		return Rating{}, ErrNotFound
	}
	if err != nil {
		return Rating{}, err
	}
	return Rating{
		DriverID:  driverID,
		Upvotes:   rec.Int64("upvotes"),
		Downvotes: rec.Int64("downvotes"),
	}, nil
}

func (s *Store) Increment(ctx context.Context, driverID types.ID, v Verdict) error {
	err := s.db.Update(ctx, Collection, string(driverID), docstore.Record{v.field(): docstore.Inc(1)})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) StageIncrement(tx docstore.Tx, driverID types.ID, v Verdict) error {
	return tx.Update(Collection, string(driverID), docstore.Record{v.field(): docstore.Inc(1)})
}
