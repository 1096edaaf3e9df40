// README: Settlement moves the fare from rider to driver and records the rider's verdict.
package settlement

import (
	"context"

	"github.com/sirupsen/logrus"

	"newber/internal/apperr"
	"newber/internal/docstore"
	"newber/internal/modules/rating"
	"newber/internal/modules/user"
	"newber/internal/types"
)

var ErrNegativeCost = apperr.Validation("settlement cost must not be negative")

type Transfer struct {
	RiderID  types.ID
	DriverID types.ID
	Cost     types.Money
	Verdict  rating.Verdict
}

type Service struct {
	db      docstore.Store
	users   *user.Store
	ratings *rating.Service
	log     logrus.FieldLogger
}

func NewService(db docstore.Store, users *user.Store, ratings *rating.Service, log logrus.FieldLogger) *Service {
	return &Service{db: db, users: users, ratings: ratings, log: log}
}

// Settle commits the transfer on its own. Balances may go negative.
func (s *Service) Settle(ctx context.Context, t Transfer) error {
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return s.Stage(tx, t)
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"rider_id":  t.RiderID,
		"driver_id": t.DriverID,
		"cost":      t.Cost.String(),
		"verdict":   t.Verdict,
	}).Info("settled")
	return nil
}

// Stage adds the debit, the credit and the rating vote to tx. Stage performs no reads, so it
// can follow the caller's own reads and writes.
func (s *Service) Stage(tx docstore.Tx, t Transfer) error {
	if t.Cost.Amount < 0 {
		return ErrNegativeCost
	}
	if t.RiderID == "" || t.DriverID == "" {
		return apperr.Validation("settlement needs a rider and a driver")
	}
	if err := s.users.StageBalance(tx, t.RiderID, t.Cost.Neg()); err != nil {
		return err
	}
	if err := s.users.StageBalance(tx, t.DriverID, t.Cost); err != nil {
		return err
	}
	return s.ratings.Stage(tx, t.DriverID, t.Verdict)
}
