// README: Rating service records verdicts and derives the percentage score.
package rating

import (
	"context"

	"newber/internal/apperr"
	"newber/internal/docstore"
	"newber/internal/types"
)

var ErrBadVerdict = apperr.Validation("verdict must be up or down")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, driverID types.ID) error {
	return s.store.Create(ctx, driverID)
}

func (s *Service) Get(ctx context.Context, driverID types.ID) (Rating, error) {
	return s.store.Get(ctx, driverID)
}

// Record adds exactly one vote. Votes are never removed.
func (s *Service) Record(ctx context.Context, driverID types.ID, v Verdict) error {
	if _, ok := ParseVerdict(string(v)); !ok {
		return ErrBadVerdict
	}
	return s.store.Increment(ctx, driverID, v)
}

func (s *Service) Score(ctx context.Context, driverID types.ID) (float64, error) {
	r, err := s.store.Get(ctx, driverID)
	if err != nil {
		return 0, err
	}
	return r.Score(), nil
}

// Stage records the vote inside an open transaction.
func (s *Service) Stage(tx docstore.Tx, driverID types.ID, v Verdict) error {
	if _, ok := ParseVerdict(string(v)); !ok {
		return ErrBadVerdict
	}
	return s.store.StageIncrement(tx, driverID, v)
}
