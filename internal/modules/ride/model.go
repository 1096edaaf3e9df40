// README: Ride request aggregate, status definitions and transition events.
package ride

import (
	"time"

	"newber/internal/types"
)

const Collection = "rideRequests"

type Status string

const (
	StatusNone      Status = "NONE"
	StatusPending   Status = "PENDING"
	StatusOffered   Status = "OFFERED"
	StatusAccepted  Status = "ACCEPTED"
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled is never stored on a request; it only appears in the event log.
	StatusCancelled Status = "CANCELLED"
)

const (
	ActorRider  = "rider"
	ActorDriver = "driver"
	ActorSystem = "system"
)

type Request struct {
	ID        types.ID
	RiderID   types.ID
	DriverID  *types.ID
	Start     types.Location
	End       types.Location
	Cost      types.Money
	Status    Status
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Involves reports whether uid is the rider or the offering driver.
func (r *Request) Involves(uid types.ID) bool {
	if r.RiderID == uid {
		return true
	}
	return r.DriverID != nil && *r.DriverID == uid
}

// Change is one delivery on a watch. Removed is set once the request no longer exists;
// Request then holds only the ID.
type Change struct {
	Request Request
	Removed bool
}

type Event struct {
	ID        int64
	RequestID types.ID
	From      Status
	To        Status
	ActorType string
	ActorID   *types.ID
	At        time.Time
}

// AllowedTransitions is the request state flow as code. Cancel is handled separately: it is
// allowed from every non-terminal status and removes the request.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusOffered},
	StatusOffered:  {StatusAccepted, StatusPending},
	StatusAccepted: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted
}
