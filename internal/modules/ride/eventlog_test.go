// README: Tests for the in-memory and Postgres ride event logs (PG skipped without NEWBER_TEST_DSN).
package ride

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"newber/internal/types"
)

func TestMemoryEventLog_OrderAndIsolation(t *testing.T) {
	l := NewMemoryEventLog()
	ctx := context.Background()
	for _, to := range []Status{StatusPending, StatusOffered} {
		if err := l.Append(ctx, &Event{RequestID: "a", To: to}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = l.Append(ctx, &Event{RequestID: "b", To: StatusPending})

	got, _ := l.List(ctx, "a")
	if len(got) != 2 || got[0].To != StatusPending || got[1].To != StatusOffered {
		t.Fatalf("unexpected events: %+v", got)
	}
	if got[0].ID >= got[1].ID {
		t.Fatalf("ids not increasing: %d, %d", got[0].ID, got[1].ID)
	}
	got[0].To = StatusCompleted
	again, _ := l.List(ctx, "a")
	if again[0].To != StatusPending {
		t.Fatalf("List must return a copy")
	}
}

func TestPGEventLog(t *testing.T) {
	db := setupTestDB(t)
	l := NewPGEventLog(db)
	ctx := context.Background()

	driver := types.ID("driver-1")
	at := time.Now().UTC().Truncate(time.Microsecond)
	events := []*Event{
		{RequestID: "req-1", From: StatusNone, To: StatusPending, ActorType: ActorRider, At: at},
		{RequestID: "req-1", From: StatusPending, To: StatusOffered, ActorType: ActorDriver, ActorID: &driver, At: at},
	}
	for _, e := range events {
		if err := l.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
		if e.ID == 0 {
			t.Fatalf("append did not assign an id")
		}
	}

	got, err := l.List(ctx, "req-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].ActorID != nil || got[1].ActorID == nil || *got[1].ActorID != driver {
		t.Fatalf("actor ids not round-tripped: %+v", got)
	}
	if got[1].From != StatusPending || got[1].To != StatusOffered || !got[1].At.Equal(at) {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("NEWBER_TEST_DSN")
	if dsn == "" {
		t.Skip("NEWBER_TEST_DSN not set; skipping DB-backed event log tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ride_request_events"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	var out []string
	for _, p := range strings.Split(input, ";") {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
