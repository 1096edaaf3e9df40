// README: Benchmark cases: environment checks, the full ride flow, the offer race and fare load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// run keeps usernames unique across runs against the same server.
	run     string
	riders  []account
	drivers []account
}

type account struct {
	uid   string
	token string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		run:   strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

var (
	downtown = map[string]any{"name": "Downtown", "lat": 53.5461, "lng": -113.4938}
	campus   = map[string]any{"name": "Campus", "lat": 53.5232, "lng": -113.5263}
)

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: checkHealth},
		{Name: "Users: sign up riders and drivers", Run: setupAccounts},
		{Name: "Ride: create, offer, accept, complete", Run: rideFlow},
		{Name: "Ride: concurrent offers, exactly one wins", Run: offerRace},
		{Name: "Fares: estimate under load", Run: fareLoad},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "SKIP", Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS"}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: "SKIP", Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS"}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: "SKIP", Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
	}
	return Result{Status: "PASS"}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "SKIP", Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if !exists {
			return Result{Status: "FAIL", Note: "missing table: " + t}
		}
	}
	return Result{Status: "PASS"}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	start := time.Now()
	status, _, err := r.call(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: "PASS", Latency: time.Since(start)}
}

func setupAccounts(ctx context.Context, r *Runner) Result {
	start := time.Now()
	for i := 0; i < 2; i++ {
		a, err := r.signUp(ctx, "Rider", fmt.Sprintf("rider%d_%s", i, r.run))
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		r.riders = append(r.riders, a)
	}
	for i := 0; i < r.cfg.Concurrency; i++ {
		a, err := r.signUp(ctx, "Driver", fmt.Sprintf("driver%d_%s", i, r.run))
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		r.drivers = append(r.drivers, a)
	}
	return Result{Status: "PASS", Latency: time.Since(start), Note: fmt.Sprintf("riders=%d drivers=%d", len(r.riders), len(r.drivers))}
}

func rideFlow(ctx context.Context, r *Runner) Result {
	if len(r.riders) == 0 || len(r.drivers) == 0 {
		return Result{Status: "SKIP", Note: "no accounts"}
	}
	rider, driver := r.riders[0], r.drivers[0]
	start := time.Now()

	id, err := r.createRequest(ctx, rider)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	steps := []struct {
		path  string
		token string
		body  any
		want  string
	}{
		{"/api/requests/" + id + "/offer", driver.token, nil, "OFFERED"},
		{"/api/requests/" + id + "/accept", rider.token, nil, "ACCEPTED"},
		{"/api/requests/" + id + "/complete", rider.token, map[string]any{"verdict": "up"}, "COMPLETED"},
	}
	for _, s := range steps {
		status, body, err := r.call(ctx, http.MethodPost, s.path, s.body, s.token)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if status != http.StatusOK || body["status"] != s.want {
			return Result{Status: "FAIL", Note: fmt.Sprintf("%s: status=%d body=%v", s.path, status, body)}
		}
	}
	if status, _, _ := r.call(ctx, http.MethodGet, "/api/requests/"+id, nil, rider.token); status != http.StatusNotFound {
		return Result{Status: "FAIL", Note: fmt.Sprintf("completed request still readable: %d", status)}
	}
	return Result{Status: "PASS", Latency: time.Since(start)}
}

func offerRace(ctx context.Context, r *Runner) Result {
	if len(r.riders) < 2 || len(r.drivers) < 2 {
		return Result{Status: "SKIP", Note: "no accounts"}
	}
	rider := r.riders[1]
	id, err := r.createRequest(ctx, rider)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}

	startGate := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	codes := map[int]int{}
	for _, d := range r.drivers {
		wg.Add(1)
		go func(d account) {
			defer wg.Done()
			<-startGate
			status, _, err := r.call(ctx, http.MethodPost, "/api/requests/"+id+"/offer", nil, d.token)
			if err != nil {
				status = -1
			}
			mu.Lock()
			codes[status]++
			mu.Unlock()
		}(d)
	}
	began := time.Now()
	close(startGate)
	wg.Wait()
	latency := time.Since(began)

	// free everyone for the next run
	_, _, _ = r.call(ctx, http.MethodPost, "/api/requests/"+id+"/cancel", nil, rider.token)

	note := fmt.Sprintf("codes=%v", codes)
	if codes[http.StatusOK] != 1 || codes[http.StatusConflict] != len(r.drivers)-1 {
		return Result{Status: "FAIL", Latency: latency, Note: note}
	}
	return Result{Status: "PASS", Latency: latency, Note: note}
}

func fareLoad(ctx context.Context, r *Runner) Result {
	if len(r.riders) == 0 {
		return Result{Status: "SKIP", Note: "no accounts"}
	}
	token := r.riders[0].token
	payload := map[string]any{"start": downtown, "end": campus}
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.call(ctx, http.MethodPost, "/api/fares/estimate", payload, token)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func (r *Runner) signUp(ctx context.Context, role, username string) (account, error) {
	email := username + "@bench.newber.test"
	status, body, err := r.call(ctx, http.MethodPost, "/api/users", map[string]any{
		"role":             role,
		"first_name":       "Bench",
		"last_name":        role,
		"username":         username,
		"phone":            "7805550000",
		"email":            email,
		"password":         "bench-password",
		"confirm_password": "bench-password",
	}, "")
	if err != nil {
		return account{}, err
	}
	if status != http.StatusCreated {
		return account{}, fmt.Errorf("sign up %s: status=%d body=%v", username, status, body)
	}
	status, body, err = r.call(ctx, http.MethodPost, "/api/sessions", map[string]any{"email": email, "password": "bench-password"}, "")
	if err != nil {
		return account{}, err
	}
	if status != http.StatusCreated {
		return account{}, fmt.Errorf("sign in %s: status=%d body=%v", username, status, body)
	}
	uid, _ := body["uid"].(string)
	token, _ := body["token"].(string)
	return account{uid: uid, token: token}, nil
}

func (r *Runner) createRequest(ctx context.Context, rider account) (string, error) {
	status, body, err := r.call(ctx, http.MethodPost, "/api/requests", map[string]any{
		"start":      downtown,
		"end":        campus,
		"cost_cents": 1500,
	}, rider.token)
	if err != nil {
		return "", err
	}
	id, _ := body["id"].(string)
	if status != http.StatusCreated || id == "" {
		return "", fmt.Errorf("create request: status=%d body=%v", status, body)
	}
	return id, nil
}

// call sends a JSON request and decodes a JSON object response, if any.
func (r *Runner) call(ctx context.Context, method, path string, body any, token string) (int, map[string]any, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, nil
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
