// README: User service handles sign-up, sign-in, profile reads and contact-info updates.
package user

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"newber/internal/apperr"
	"newber/internal/docstore"
	"newber/internal/modules/identity"
	"newber/internal/modules/rating"
	"newber/internal/types"
)

type SignUpCommand struct {
	Role            string `validate:"required,oneof=Rider Driver"`
	FirstName       string `validate:"required"`
	LastName        string `validate:"required"`
	Username        string `validate:"required"`
	Phone           string `validate:"required,phone"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

func (c *SignUpCommand) trim() {
	for _, f := range []*string{&c.Role, &c.FirstName, &c.LastName, &c.Username, &c.Phone, &c.Email} {
		*f = strings.TrimSpace(*f)
	}
}

type SignInCommand struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type UpdateContactCommand struct {
	UserID   types.ID
	Email    string `validate:"required,email"`
	Phone    string `validate:"required,phone"`
	Password string `validate:"required"`
}

type Service struct {
	db       docstore.Store
	store    *Store
	ratings  *rating.Store
	idp      identity.Provider
	names    UsernameRegistry
	currency string
	log      logrus.FieldLogger
}

// NewService opens new balances in currency, which should be the fare currency.
func NewService(db docstore.Store, store *Store, ratings *rating.Store, idp identity.Provider, names UsernameRegistry, currency string, log logrus.FieldLogger) *Service {
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &Service{db: db, store: store, ratings: ratings, idp: idp, names: names, currency: currency, log: log}
}

// SignUp creates the identity account with its role claim, then the user document and, for
// drivers, a 0/0 rating. A failure at any step undoes the earlier ones.
func (s *Service) SignUp(ctx context.Context, cmd SignUpCommand) (User, error) {
	cmd.trim()
	if err := check(cmd); err != nil {
		return User{}, err
	}
	role, _ := ParseRole(cmd.Role)

	if err := s.names.Reserve(ctx, cmd.Username, cmd.Email); err != nil {
		return User{}, err
	}
	release := func() {
		if err := s.names.Release(ctx, cmd.Username); err != nil {
			s.log.WithError(err).WithField("username", cmd.Username).Warn("username reservation not released")
		}
	}

	uid, err := s.idp.SignUp(ctx, identity.Credentials{Email: cmd.Email, Password: cmd.Password}, cmd.FirstName+" "+cmd.LastName)
	if err != nil {
		release()
		return User{}, err
	}
	undo := func(cause error) {
		fields := logrus.Fields{"uid": uid, "username": cmd.Username}
		s.log.WithError(cause).WithFields(fields).Warn("sign-up failed, removing account")
		if err := s.idp.DeleteAccount(ctx, uid); err != nil {
			s.log.WithError(err).WithFields(fields).Error("identity account not removed")
		}
		release()
	}

	// The claim goes first so a committed user document always has a usable token.
	if err := s.idp.SetRole(ctx, uid, string(role)); err != nil {
		undo(err)
		return User{}, err
	}

	u := User{
		ID:        uid,
		Username:  cmd.Username,
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Phone:     cmd.Phone,
		Email:     cmd.Email,
		Role:      role,
		Balance:   types.Money{Currency: s.currency},
	}
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := s.store.StageCreate(tx, u); err != nil {
			return err
		}
		switch role {
		case RoleDriver:
			return s.ratings.StageCreate(tx, uid)
		case RoleRider:
		}
		return nil
	})
	if err != nil {
		undo(err)
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"uid": uid, "role": role}).Info("user signed up")
	return u, nil
}

func (s *Service) SignIn(ctx context.Context, cmd SignInCommand) (identity.Session, error) {
	cmd.Email = strings.TrimSpace(cmd.Email)
	if cmd.Email == "" || strings.TrimSpace(cmd.Password) == "" {
		return identity.Session{}, apperr.Validation("please enter an email and password")
	}
	return s.idp.SignIn(ctx, identity.Credentials{Email: cmd.Email, Password: cmd.Password})
}

func (s *Service) SignOut(ctx context.Context, uid types.ID) error {
	return s.idp.SignOut(ctx, uid)
}

func (s *Service) Get(ctx context.Context, uid types.ID) (User, error) {
	return s.store.Get(ctx, uid)
}

// UpdateContact re-authenticates with the current password before changing email or phone.
func (s *Service) UpdateContact(ctx context.Context, cmd UpdateContactCommand) (User, error) {
	cmd.Email = strings.TrimSpace(cmd.Email)
	cmd.Phone = strings.TrimSpace(cmd.Phone)
	if err := check(cmd); err != nil {
		return User{}, err
	}

	u, err := s.store.Get(ctx, cmd.UserID)
	if err != nil {
		return User{}, err
	}
	if _, err := s.idp.SignIn(ctx, identity.Credentials{Email: u.Email, Password: cmd.Password}); err != nil {
		if errors.Is(err, apperr.ErrAuth) {
			return User{}, apperr.Auth("password incorrect, email could not be updated", err)
		}
		return User{}, err
	}
	if !strings.EqualFold(cmd.Email, u.Email) {
		if err := s.idp.UpdateEmail(ctx, u.ID, cmd.Email); err != nil {
			return User{}, err
		}
	}
	if err := s.store.UpdateContact(ctx, u.ID, cmd.Email, cmd.Phone); err != nil {
		return User{}, err
	}
	u.Email, u.Phone = cmd.Email, cmd.Phone
	return u, nil
}
