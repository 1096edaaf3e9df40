// README: Ride request transition history, in memory or in PostgreSQL.
package ride

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"newber/internal/apperr"
	"newber/internal/types"
)

type EventLog interface {
	Append(ctx context.Context, e *Event) error
	// List returns the events for one request in the order they were appended.
	List(ctx context.Context, requestID types.ID) ([]Event, error)
}

type MemoryEventLog struct {
	mu     sync.Mutex
	nextID int64
	events map[types.ID][]Event
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{events: make(map[types.ID][]Event)}
}

func (l *MemoryEventLog) Append(ctx context.Context, e *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	e.ID = l.nextID
	l.events[e.RequestID] = append(l.events[e.RequestID], *e)
	return nil
}

func (l *MemoryEventLog) List(ctx context.Context, requestID types.ID) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events[requestID]...), nil
}

type PGEventLog struct {
	db *pgxpool.Pool
}

func NewPGEventLog(db *pgxpool.Pool) *PGEventLog {
	return &PGEventLog{db: db}
}

func (l *PGEventLog) Append(ctx context.Context, e *Event) error {
	err := l.db.QueryRow(ctx, `
		INSERT INTO ride_request_events (
			request_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(e.RequestID),
		string(e.From),
		string(e.To),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.At,
	).Scan(&e.ID)
	if err != nil {
		return apperr.Store("append ride event", err)
	}
	return nil
}

func (l *PGEventLog) List(ctx context.Context, requestID types.ID) ([]Event, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, request_id, from_status, to_status, actor_type, actor_id, created_at
		FROM ride_request_events
		WHERE request_id = $1
		ORDER BY id`, string(requestID),
	)
	if err != nil {
		return nil, apperr.Store("list ride events", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.From, &e.To, &e.ActorType, &actorID, &e.At); err != nil {
			return nil, apperr.Store("scan ride event", err)
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list ride events", err)
	}
	return out, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
