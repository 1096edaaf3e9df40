// README: User store over the document store, including transaction helpers for pointers and balances.
package user

import (
	"context"
	"errors"

	"newber/internal/apperr"
	"newber/internal/docstore"
	"newber/internal/types"
)

var ErrNotFound = apperr.New(apperr.ErrNotFound, "user not found")

type Store struct {
	db docstore.Store
}

func NewStore(db docstore.Store) *Store {
	return &Store{db: db}
}

func toRecord(u User) docstore.Record {
	return docstore.Record{
		"username":         u.Username,
		"usernameKey":      usernameKey(u.Username),
		"firstName":        u.FirstName,
		"lastName":         u.LastName,
		"phone":            u.Phone,
		"email":            u.Email,
		"role":             string(u.Role),
		"balance":          u.Balance.Amount,
		"currency":         u.Balance.Currency,
		"currentRequestId": string(u.CurrentRequestID),
	}
}

func fromRecord(id string, rec docstore.Record) User {
	currency := rec.String("currency")
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return User{
		ID:               types.ID(id),
		Username:         rec.String("username"),
		FirstName:        rec.String("firstName"),
		LastName:         rec.String("lastName"),
		Phone:            rec.String("phone"),
		Email:            rec.String("email"),
		Role:             Role(rec.String("role")),
		Balance:          types.Money{Amount: rec.Int64("balance"), Currency: currency},
		CurrentRequestID: types.ID(rec.String("currentRequestId")),
	}
}

func (s *Store) StageCreate(tx docstore.Tx, u User) error {
	return tx.Set(Collection, string(u.ID), toRecord(u))
}

func (s *Store) Get(ctx context.Context, id types.ID) (User, error) {
	rec, err := s.db.Get(ctx, Collection, string(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return fromRecord(string(id), rec), nil
}

func (s *Store) GetTx(tx docstore.Tx, id types.ID) (User, error) {
	rec, err := tx.Get(Collection, string(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return fromRecord(string(id), rec), nil
}

// FindByUsername matches case-insensitively.
func (s *Store) FindByUsername(ctx context.Context, username string) ([]User, error) {
	snaps, err := s.db.Query(ctx, Collection, docstore.Eq("usernameKey", usernameKey(username)))
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, fromRecord(snap.ID, snap.Data))
	}
	return out, nil
}

func (s *Store) UpdateContact(ctx context.Context, id types.ID, email, phone string) error {
	err := s.db.Update(ctx, Collection, string(id), docstore.Record{"email": email, "phone": phone})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// AdjustBalance adds delta (which may be negative) outside of any transaction.
func (s *Store) AdjustBalance(ctx context.Context, id types.ID, delta types.Money) error {
	err := s.db.Update(ctx, Collection, string(id), docstore.Record{"balance": docstore.Inc(delta.Amount)})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) StageBalance(tx docstore.Tx, id types.ID, delta types.Money) error {
	return tx.Update(Collection, string(id), docstore.Record{"balance": docstore.Inc(delta.Amount)})
}

// StageCurrentRequest sets the user's current-request pointer; an empty requestID clears it.
func (s *Store) StageCurrentRequest(tx docstore.Tx, id, requestID types.ID) error {
	return tx.Update(Collection, string(id), docstore.Record{"currentRequestId": string(requestID)})
}
