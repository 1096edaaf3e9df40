// README: Ride request service implements the lifecycle transitions, watches and history.
package ride

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"newber/internal/apperr"
	"newber/internal/docstore"
	"newber/internal/modules/rating"
	"newber/internal/modules/settlement"
	"newber/internal/modules/user"
	"newber/internal/notify"
	"newber/internal/types"
)

type Pricing interface {
	BaseMoney(start, end types.Point) types.Money
	Currency() string
}

// Geocoder names a point for display. It is optional.
type Geocoder interface {
	ResolveName(ctx context.Context, p types.Point) (string, error)
}

type Settler interface {
	Stage(tx docstore.Tx, t settlement.Transfer) error
}

var (
	ErrInvalidState  = apperr.New(apperr.ErrConflict, "invalid state transition")
	ErrNotFound      = apperr.New(apperr.ErrNotFound, "ride request not found")
	ErrNoCurrent     = apperr.New(apperr.ErrNotFound, "no active ride request")
	ErrActiveRequest = apperr.Conflict("rider already has an active ride request")
	ErrDriverBusy    = apperr.Conflict("driver already has an active ride request")
	ErrNotRider      = apperr.New(apperr.ErrForbidden, "only riders can request rides")
	ErrNotDriver     = apperr.New(apperr.ErrForbidden, "only drivers can offer rides")
	ErrOwnRequest    = apperr.New(apperr.ErrForbidden, "cannot offer on your own request")
	ErrFareBelowBase = apperr.Validation("cost is below the base fare")
	ErrBadRequest    = apperr.Validation("bad request")
	ErrBadLocation   = apperr.Validation("coordinates are out of range")
	ErrCurrency      = apperr.Validation("cost is not in the fare currency")
)

type CreateCommand struct {
	RiderID types.ID
	Start   types.Location
	End     types.Location
	Cost    types.Money
}

type OfferCommand struct {
	RequestID types.ID
	DriverID  types.ID
}

type Service struct {
	db       docstore.Store
	store    *Store
	users    *user.Store
	pricing  Pricing
	settler  Settler
	events   EventLog
	geocoder Geocoder
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService wires the lifecycle manager. geocoder may be nil.
func NewService(db docstore.Store, users *user.Store, pricing Pricing, settler Settler, events EventLog, geocoder Geocoder, log logrus.FieldLogger) *Service {
	return &Service{
		db:       db,
		store:    NewStore(db),
		users:    users,
		pricing:  pricing,
		settler:  settler,
		events:   events,
		geocoder: geocoder,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Request, error) {
	if cmd.RiderID == "" {
		return nil, ErrBadRequest
	}
	if !cmd.Start.Point.Valid() || !cmd.End.Point.Valid() {
		return nil, ErrBadLocation
	}
	if cmd.Cost.Currency == "" {
		cmd.Cost.Currency = s.pricing.Currency()
	}
	// balances are kept in the fare currency, so settlement never mixes currencies
	if cmd.Cost.Currency != s.pricing.Currency() {
		return nil, ErrCurrency
	}
	if base := s.pricing.BaseMoney(cmd.Start.Point, cmd.End.Point); cmd.Cost.Amount < base.Amount {
		return nil, ErrFareBelowBase
	}

	// Fail fast before paying for geocoding; the transaction re-checks.
	rider, err := s.users.Get(ctx, cmd.RiderID)
	if err != nil {
		return nil, err
	}
	if err := checkRider(rider); err != nil {
		return nil, err
	}

	now := s.now()
	r := &Request{
		ID:        types.ID(uuid.NewString()),
		RiderID:   cmd.RiderID,
		Start:     s.name(ctx, cmd.Start),
		End:       s.name(ctx, cmd.End),
		Cost:      cmd.Cost,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		rider, err := s.users.GetTx(tx, cmd.RiderID)
		if err != nil {
			return err
		}
		if err := checkRider(rider); err != nil {
			return err
		}
		if err := s.store.StagePut(tx, r); err != nil {
			return err
		}
		return s.users.StageCurrentRequest(tx, rider.ID, r.ID)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, r.ID, StatusNone, StatusPending, ActorRider, &r.RiderID)
	return r, nil
}

func checkRider(u user.User) error {
	if u.Role != user.RoleRider {
		return ErrNotRider
	}
	if u.HasActiveRequest() {
		return ErrActiveRequest
	}
	return nil
}

// name fills in a missing location name. Lookup failures fall back to the coordinates.
func (s *Service) name(ctx context.Context, l types.Location) types.Location {
	if l.Name != "" {
		return l
	}
	l.Name = l.Point.String()
	if s.geocoder == nil {
		return l
	}
	name, err := s.geocoder.ResolveName(ctx, l.Point)
	if err != nil {
		s.log.WithError(err).WithField("point", l.Point.String()).Warn("reverse geocoding failed")
		return l
	}
	if name != "" {
		l.Name = name
	}
	return l
}

// Offer attaches a driver to a pending request. Of two concurrent offers exactly one wins; the
// other sees OFFERED and fails with ErrInvalidState.
func (s *Service) Offer(ctx context.Context, cmd OfferCommand) (*Request, error) {
	if cmd.RequestID == "" || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	var out *Request
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := s.store.GetTx(tx, cmd.RequestID)
		if err != nil {
			return err
		}
		driver, err := s.users.GetTx(tx, cmd.DriverID)
		if err != nil {
			return err
		}
		if !CanTransition(r.Status, StatusOffered) {
			return ErrInvalidState
		}
		switch {
		case driver.Role != user.RoleDriver:
			return ErrNotDriver
		case driver.ID == r.RiderID:
			return ErrOwnRequest
		case driver.HasActiveRequest():
			return ErrDriverBusy
		}

		driverID := driver.ID
		r.DriverID = &driverID
		s.advance(r, StatusOffered)
		if err := s.store.StagePut(tx, r); err != nil {
			return err
		}
		out = r
		return s.users.StageCurrentRequest(tx, driverID, r.ID)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, out.ID, StatusPending, StatusOffered, ActorDriver, out.DriverID)
	return out, nil
}

func (s *Service) Accept(ctx context.Context, id types.ID) (*Request, error) {
	var out *Request
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := s.store.GetTx(tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(r.Status, StatusAccepted) {
			return ErrInvalidState
		}
		s.advance(r, StatusAccepted)
		out = r
		return s.store.StagePut(tx, r)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, id, StatusOffered, StatusAccepted, ActorRider, &out.RiderID)
	return out, nil
}

// Decline sends an offered request back to PENDING and frees the driver. The rider keeps the request.
func (s *Service) Decline(ctx context.Context, id types.ID) (*Request, error) {
	var out *Request
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := s.store.GetTx(tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(r.Status, StatusPending) || r.DriverID == nil {
			return ErrInvalidState
		}
		freed, err := s.pointersTo(tx, r.ID, *r.DriverID)
		if err != nil {
			return err
		}
		r.DriverID = nil
		s.advance(r, StatusPending)
		if err := s.store.StagePut(tx, r); err != nil {
			return err
		}
		out = r
		return s.clearPointers(tx, freed)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, id, StatusOffered, StatusPending, ActorRider, &out.RiderID)
	return out, nil
}

// Complete settles an accepted request and removes it. Calling it again on a request that is
// already COMPLETED only finishes the removal; nothing is settled twice.
func (s *Service) Complete(ctx context.Context, id types.ID, verdict rating.Verdict) (*Request, error) {
	if _, ok := rating.ParseVerdict(string(verdict)); !ok {
		return nil, rating.ErrBadVerdict
	}
	var out *Request
	var retried bool
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		retried = false
		r, err := s.store.GetTx(tx, id)
		if err != nil {
			return err
		}
		out = r
		if r.Status == StatusCompleted {
			retried = true
			return nil
		}
		if !CanTransition(r.Status, StatusCompleted) || r.DriverID == nil {
			return ErrInvalidState
		}
		freed, err := s.pointersTo(tx, r.ID, r.RiderID, *r.DriverID)
		if err != nil {
			return err
		}
		s.advance(r, StatusCompleted)
		if err := s.store.StagePut(tx, r); err != nil {
			return err
		}
		err = s.settler.Stage(tx, settlement.Transfer{
			RiderID:  r.RiderID,
			DriverID: *r.DriverID,
			Cost:     r.Cost,
			Verdict:  verdict,
		})
		if err != nil {
			return err
		}
		return s.clearPointers(tx, freed)
	})
	if err != nil {
		return nil, err
	}
	if !retried {
		s.record(ctx, id, StatusAccepted, StatusCompleted, ActorRider, &out.RiderID)
		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"cost":       out.Cost.String(),
			"verdict":    verdict,
		}).Info("ride request settled")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel removes a request that has not completed and frees everyone attached to it.
func (s *Service) Cancel(ctx context.Context, id types.ID) error {
	var from Status
	var riderID types.ID
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := s.store.GetTx(tx, id)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return ErrInvalidState
		}
		from, riderID = r.Status, r.RiderID
		uids := []types.ID{r.RiderID}
		if r.DriverID != nil {
			uids = append(uids, *r.DriverID)
		}
		freed, err := s.pointersTo(tx, r.ID, uids...)
		if err != nil {
			return err
		}
		if err := s.clearPointers(tx, freed); err != nil {
			return err
		}
		return s.store.StageDelete(tx, r.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, id, from, StatusCancelled, ActorRider, &riderID)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	return s.store.Get(ctx, id)
}

// ListPending returns every request still waiting for a driver, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*Request, error) {
	return s.store.ListByStatus(ctx, StatusPending)
}

// CurrentFor resolves the user's current-request pointer.
func (s *Service) CurrentFor(ctx context.Context, uid types.ID) (*Request, error) {
	u, err := s.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !u.HasActiveRequest() {
		return nil, ErrNoCurrent
	}
	r, err := s.store.Get(ctx, u.CurrentRequestID)
	if errors.Is(err, ErrNotFound) {
		s.log.WithFields(logrus.Fields{"uid": uid, "request_id": u.CurrentRequestID}).Warn("current-request pointer is dangling")
		return nil, ErrNoCurrent
	}
	return r, err
}

// Watch delivers the current state of the request and then every change, in order. The
// subscription ends when the caller cancels it or ctx is done.
func (s *Service) Watch(ctx context.Context, id types.ID) (*notify.Subscription[Change], error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	sub := notify.New[Change]()
	h, err := s.store.Watch(ctx, id, func(c Change) {
		sub.Publish(c)
	})
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	sub.OnCancel(h.Cancel)
	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		}
	}()
	return sub, nil
}

// History lists recorded transitions. It keeps working after the request has been removed.
func (s *Service) History(ctx context.Context, id types.ID) ([]Event, error) {
	return s.events.List(ctx, id)
}

func (s *Service) advance(r *Request, to Status) {
	r.Status = to
	r.Version++
	r.UpdatedAt = s.now()
}

// pointersTo reads the given users and returns those whose pointer names requestID.
// Users that no longer exist are skipped.
func (s *Service) pointersTo(tx docstore.Tx, requestID types.ID, uids ...types.ID) ([]types.ID, error) {
	var out []types.ID
	for _, uid := range uids {
		u, err := s.users.GetTx(tx, uid)
		if errors.Is(err, user.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if u.CurrentRequestID == requestID {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (s *Service) clearPointers(tx docstore.Tx, uids []types.ID) error {
	for _, uid := range uids {
		if err := s.users.StageCurrentRequest(tx, uid, ""); err != nil {
			return err
		}
	}
	return nil
}

// record appends to the event log. The transition is already committed, so a failure is only logged.
func (s *Service) record(ctx context.Context, id types.ID, from, to Status, actorType string, actorID *types.ID) {
	e := &Event{
		RequestID: id,
		From:      from,
		To:        to,
		ActorType: actorType,
		ActorID:   actorID,
		At:        s.now(),
	}
	fields := logrus.Fields{"request_id": id, "from": from, "to": to}
	if err := s.events.Append(ctx, e); err != nil {
		s.log.WithError(err).WithFields(fields).Warn("ride event not recorded")
		return
	}
	s.log.WithFields(fields).Debug("ride request transition")
}
