// README: Tests for sign-up validation, sign-in, contact updates and username registries.
package user

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"newber/internal/apperr"
	"newber/internal/docstore"
	"newber/internal/logger"
	"newber/internal/modules/identity"
	"newber/internal/modules/rating"
	"newber/internal/types"
)

type fixture struct {
	svc     *Service
	store   *Store
	ratings *rating.Store
	idp     *identity.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := docstore.NewMemory()
	store := NewStore(db)
	ratings := rating.NewStore(db)
	idp := identity.NewMemoryWithCost(bcrypt.MinCost)
	svc := NewService(db, store, ratings, idp, NewStoreRegistry(store), "CAD", logger.Discard())
	return fixture{svc: svc, store: store, ratings: ratings, idp: idp}
}

func validSignUp() SignUpCommand {
	return SignUpCommand{
		Role:            "Driver",
		FirstName:       "Dana",
		LastName:        "Driver",
		Username:        "dana",
		Phone:           "+17805551234",
		Email:           "dana@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	}
}

func TestSignUp_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		mutate func(*SignUpCommand)
		want   string
	}{
		{"empty first name", func(c *SignUpCommand) { c.FirstName = "  " }, "please enter all fields"},
		{"missing role", func(c *SignUpCommand) { c.Role = "" }, "please select an account type"},
		{"unknown role", func(c *SignUpCommand) { c.Role = "Admin" }, "please select an account type"},
		{"short phone", func(c *SignUpCommand) { c.Phone = "12345" }, "please enter a valid phone number"},
		{"letters in phone", func(c *SignUpCommand) { c.Phone = "780555abcd" }, "please enter a valid phone number"},
		{"bad email", func(c *SignUpCommand) { c.Email = "not-an-email" }, "please enter a valid email address"},
		{"password mismatch", func(c *SignUpCommand) { c.ConfirmPassword = "other" }, "passwords do not match"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validSignUp()
			tc.mutate(&cmd)
			_, err := f.svc.SignUp(context.Background(), cmd)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.want {
				t.Fatalf("message = %q, want %q", err.Error(), tc.want)
			}
		})
	}
}

func TestSignUp_DriverGetsRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	got, err := f.store.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != RoleDriver || got.Balance.Amount != 0 || got.HasActiveRequest() {
		t.Fatalf("unexpected user: %+v", got)
	}
	r, err := f.ratings.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if r.Upvotes != 0 || r.Downvotes != 0 {
		t.Fatalf("rating = %+v, want 0/0", r)
	}

	sess, err := f.svc.SignIn(ctx, SignInCommand{Email: "dana@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	tok, _ := f.idp.VerifyIDToken(ctx, sess.Token)
	if tok.Claims[identity.RoleClaim] != "Driver" {
		t.Fatalf("role claim = %v", tok.Claims[identity.RoleClaim])
	}
}

func TestSignUp_RiderHasNoRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cmd := validSignUp()
	cmd.Role = "Rider"
	u, err := f.svc.SignUp(ctx, cmd)
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := f.ratings.Get(ctx, u.ID); !errors.Is(err, rating.ErrNotFound) {
		t.Fatalf("rider should have no rating, got %v", err)
	}
}

func TestSignUp_UsernameTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SignUp(ctx, validSignUp()); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	cmd := validSignUp()
	cmd.Email = "someone@example.com"
	if _, err := f.svc.SignUp(ctx, cmd); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignUp_UsernameIgnoresCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SignUp(ctx, validSignUp()); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	cmd := validSignUp()
	cmd.Username = "DANA"
	cmd.Email = "other@example.com"
	if _, err := f.svc.SignUp(ctx, cmd); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignUp_BalanceUsesConfiguredCurrency(t *testing.T) {
	db := docstore.NewMemory()
	store := NewStore(db)
	svc := NewService(db, store, rating.NewStore(db), identity.NewMemoryWithCost(bcrypt.MinCost), NewStoreRegistry(store), "USD", logger.Discard())

	u, err := svc.SignUp(context.Background(), validSignUp())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	got, _ := store.Get(context.Background(), u.ID)
	if got.Balance.Currency != "USD" || u.Balance.Currency != "USD" {
		t.Fatalf("balance currency = %q / %q, want USD", got.Balance.Currency, u.Balance.Currency)
	}
}

// flakyClaims fails SetRole until fail is cleared.
type flakyClaims struct {
	*identity.Memory
	fail bool
}

func (p *flakyClaims) SetRole(ctx context.Context, uid types.ID, role string) error {
	if p.fail {
		return apperr.Auth("claims backend down", nil)
	}
	return p.Memory.SetRole(ctx, uid, role)
}

func TestSignUp_FailedRoleLeavesNothingBehind(t *testing.T) {
	db := docstore.NewMemory()
	store := NewStore(db)
	ratings := rating.NewStore(db)
	idp := &flakyClaims{Memory: identity.NewMemoryWithCost(bcrypt.MinCost), fail: true}
	svc := NewService(db, store, ratings, idp, NewStoreRegistry(store), "CAD", logger.Discard())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, validSignUp()); !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if found, _ := store.FindByUsername(ctx, "dana"); len(found) != 0 {
		t.Fatalf("user document left behind: %+v", found)
	}
	if _, err := idp.SignIn(ctx, identity.Credentials{Email: "dana@example.com", Password: "hunter22"}); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("identity account left behind: %v", err)
	}

	idp.fail = false
	u, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("retry sign up: %v", err)
	}
	if _, err := ratings.Get(ctx, u.ID); err != nil {
		t.Fatalf("rating after retry: %v", err)
	}
	sess, err := svc.SignIn(ctx, SignInCommand{Email: "dana@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	tok, _ := idp.VerifyIDToken(ctx, sess.Token)
	if tok.Claims[identity.RoleClaim] != "Driver" {
		t.Fatalf("role claim = %v", tok.Claims[identity.RoleClaim])
	}
}

func TestSignIn_EmptyFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SignIn(context.Background(), SignInCommand{Email: " ", Password: "x"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	_, err = f.svc.UpdateContact(ctx, UpdateContactCommand{UserID: u.ID, Email: "new@example.com", Phone: "7805550000", Password: "wrong"})
	if !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if err.Error() != "password incorrect, email could not be updated" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	_, err = f.svc.UpdateContact(ctx, UpdateContactCommand{UserID: u.ID, Email: "new@example.com", Phone: "12", Password: "hunter22"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	updated, err := f.svc.UpdateContact(ctx, UpdateContactCommand{UserID: u.ID, Email: "new@example.com", Phone: "7805550000", Password: "hunter22"})
	if err != nil {
		t.Fatalf("update contact: %v", err)
	}
	if updated.Email != "new@example.com" || updated.Phone != "7805550000" {
		t.Fatalf("unexpected user: %+v", updated)
	}
	stored, _ := f.store.Get(ctx, u.ID)
	if stored.Email != "new@example.com" {
		t.Fatalf("store not updated: %+v", stored)
	}
	if _, err := f.svc.SignIn(ctx, SignInCommand{Email: "new@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("sign in with new email: %v", err)
	}
}

func TestRedisRegistry(t *testing.T) {
	addr := os.Getenv("NEWBER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NEWBER_TEST_REDIS_ADDR not set; skipping Redis registry test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	reg := NewRedisRegistry(rdb)
	name := "registry_test_user"
	_ = reg.Release(ctx, name)

	if err := reg.Reserve(ctx, name, "a@example.com"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := reg.Reserve(ctx, "REGISTRY_TEST_USER", "b@example.com"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if err := reg.Release(ctx, name); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := reg.Reserve(ctx, name, "b@example.com"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	_ = reg.Release(ctx, name)
}
