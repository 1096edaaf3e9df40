// README: Concurrency tests for ride request transitions (run with -race).
package ride

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"newber/internal/apperr"
	"newber/internal/modules/rating"
	"newber/internal/modules/user"
	"newber/internal/types"
)

func TestConcurrentOffersSameRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "rider", user.RoleRider, 0)

	const attempts = 8
	for i := 0; i < attempts; i++ {
		f.seed(t, types.ID(fmt.Sprintf("d%d", i)), user.RoleDriver, 0)
	}
	r := f.create(t, "rider")

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(did types.ID) {
			defer wg.Done()
			<-start
			_, err := f.svc.Offer(ctx, OfferCommand{RequestID: r.ID, DriverID: did})
			errs <- err
		}(types.ID(fmt.Sprintf("d%d", i)))
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}

	got, err := f.svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusOffered || got.DriverID == nil {
		t.Fatalf("unexpected final request: %+v", got)
	}
	// only the winner holds the pointer
	holders := 0
	for i := 0; i < attempts; i++ {
		if f.pointer(t, types.ID(fmt.Sprintf("d%d", i))) == r.ID {
			holders++
		}
	}
	if holders != 1 {
		t.Fatalf("expected 1 driver pointer, got %d", holders)
	}
}

func TestConcurrentCompleteVsCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "rider", user.RoleRider, 10000)
	f.seed(t, "driver", user.RoleDriver, 0)
	r := f.create(t, "rider")
	if _, err := f.svc.Offer(ctx, OfferCommand{RequestID: r.ID, DriverID: "driver"}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := f.svc.Accept(ctx, r.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	var completeErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, completeErr = f.svc.Complete(ctx, r.ID, rating.ThumbsUp)
	}()
	go func() {
		defer wg.Done()
		<-start
		cancelErr = f.svc.Cancel(ctx, r.ID)
	}()
	close(start)
	wg.Wait()

	if f.pointer(t, "rider") != "" || f.pointer(t, "driver") != "" {
		t.Fatalf("pointers not cleared")
	}
	if _, err := f.svc.Get(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("request still readable: %v", err)
	}
	rider, _ := f.users.Get(ctx, "rider")
	switch {
	case completeErr == nil:
		if rider.Balance.Amount != 10000-1234 {
			t.Fatalf("completed but rider balance %d", rider.Balance.Amount)
		}
		if cancelErr != nil && !errors.Is(cancelErr, apperr.ErrConflict) && !errors.Is(cancelErr, ErrNotFound) {
			t.Fatalf("unexpected cancel error: %v", cancelErr)
		}
	case cancelErr == nil:
		if rider.Balance.Amount != 10000 {
			t.Fatalf("cancelled but rider balance %d", rider.Balance.Amount)
		}
		if !errors.Is(completeErr, ErrNotFound) {
			t.Fatalf("unexpected complete error: %v", completeErr)
		}
	default:
		t.Fatalf("both failed: complete=%v cancel=%v", completeErr, cancelErr)
	}
}
