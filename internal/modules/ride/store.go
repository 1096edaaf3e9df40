// README: Ride request store over the document store: record mapping, staged writes, queries and watches.
package ride

import (
	"context"
	"errors"
	"sort"

	"newber/internal/docstore"
	"newber/internal/types"
)

type Store struct {
	db docstore.Store
}

func NewStore(db docstore.Store) *Store {
	return &Store{db: db}
}

func locationRecord(l types.Location) docstore.Record {
	return docstore.Record{"name": l.Name, "lat": l.Point.Lat, "lng": l.Point.Lng}
}

func locationFrom(rec docstore.Record) types.Location {
	return types.Location{
		Name:  rec.String("name"),
		Point: types.Point{Lat: rec.Float64("lat"), Lng: rec.Float64("lng")},
	}
}

func toRecord(r *Request) docstore.Record {
	driverID := ""
	if r.DriverID != nil {
		driverID = string(*r.DriverID)
	}
	return docstore.Record{
		"riderId":   string(r.RiderID),
		"driverId":  driverID,
		"start":     locationRecord(r.Start),
		"end":       locationRecord(r.End),
		"cost":      r.Cost.Amount,
		"currency":  r.Cost.Currency,
		"status":    string(r.Status),
		"version":   r.Version,
		"createdAt": r.CreatedAt,
		"updatedAt": r.UpdatedAt,
	}
}

func fromRecord(id string, rec docstore.Record) *Request {
	r := &Request{
		ID:        types.ID(id),
		RiderID:   types.ID(rec.String("riderId")),
		Start:     locationFrom(rec.Map("start")),
		End:       locationFrom(rec.Map("end")),
		Cost:      types.Money{Amount: rec.Int64("cost"), Currency: rec.String("currency")},
		Status:    Status(rec.String("status")),
		Version:   rec.Int64("version"),
		CreatedAt: rec.Time("createdAt"),
		UpdatedAt: rec.Time("updatedAt"),
	}
	if d := rec.String("driverId"); d != "" {
		driverID := types.ID(d)
		r.DriverID = &driverID
	}
	if r.Cost.Currency == "" {
		r.Cost.Currency = types.DefaultCurrency
	}
	return r
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Request, error) {
	rec, err := s.db.Get(ctx, Collection, string(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(string(id), rec), nil
}

func (s *Store) GetTx(tx docstore.Tx, id types.ID) (*Request, error) {
	rec, err := tx.Get(Collection, string(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(string(id), rec), nil
}

// StagePut writes the whole request, replacing any previous version.
func (s *Store) StagePut(tx docstore.Tx, r *Request) error {
	return tx.Set(Collection, string(r.ID), toRecord(r))
}

func (s *Store) StageDelete(tx docstore.Tx, id types.ID) error {
	return tx.Delete(Collection, string(id))
}

func (s *Store) Delete(ctx context.Context, id types.ID) error {
	return s.db.Delete(ctx, Collection, string(id))
}

// ListByStatus returns matching requests, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Request, error) {
	snaps, err := s.db.Query(ctx, Collection, docstore.Eq("status", string(status)))
	if err != nil {
		return nil, err
	}
	out := make([]*Request, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, fromRecord(snap.ID, snap.Data))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Watch(ctx context.Context, id types.ID, fn func(Change)) (docstore.Handle, error) {
	return s.db.Watch(ctx, Collection, string(id), func(snap docstore.Snapshot) {
		if !snap.Exists {
			fn(Change{Request: Request{ID: id}, Removed: true})
			return
		}
		fn(Change{Request: *fromRecord(snap.ID, snap.Data)})
	})
}
