// README: In-memory identity provider with bcrypt password hashes, for local runs and tests.
package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"newber/internal/apperr"
	"newber/internal/types"
)

type account struct {
	uid    types.ID
	email  string
	hash   []byte
	claims map[string]interface{}
}

type Memory struct {
	mu      sync.Mutex
	cost    int
	byEmail map[string]*account
	byUID   map[types.ID]*account
	tokens  map[string]types.ID
}

func NewMemory() *Memory {
	return NewMemoryWithCost(bcrypt.DefaultCost)
}

// NewMemoryWithCost lets tests trade hash strength for speed.
func NewMemoryWithCost(cost int) *Memory {
	return &Memory{
		cost:    cost,
		byEmail: make(map[string]*account),
		byUID:   make(map[types.ID]*account),
		tokens:  make(map[string]types.ID),
	}
}

func normEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func (m *Memory) SignUp(ctx context.Context, c Credentials, displayName string) (types.ID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), m.cost)
	if err != nil {
		return "", apperr.Auth("could not create account", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	email := normEmail(c.Email)
	if _, ok := m.byEmail[email]; ok {
		return "", ErrEmailTaken
	}
	a := &account{
		uid:    types.ID(strings.ReplaceAll(uuid.NewString(), "-", "")),
		email:  email,
		hash:   hash,
		claims: map[string]interface{}{},
	}
	m.byEmail[email] = a
	m.byUID[a.uid] = a
	return a.uid, nil
}

func (m *Memory) SignIn(ctx context.Context, c Credentials) (Session, error) {
	m.mu.Lock()
	a, ok := m.byEmail[normEmail(c.Email)]
	m.mu.Unlock()
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(c.Password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token := uuid.NewString()
	m.mu.Lock()
	m.tokens[token] = a.uid
	m.mu.Unlock()
	return Session{UID: a.uid, Token: token}, nil
}

func (m *Memory) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.tokens[idToken]
	if !ok {
		return nil, ErrInvalidToken
	}
	a := m.byUID[uid]
	claims := make(map[string]interface{}, len(a.claims))
	for k, v := range a.claims {
		claims[k] = v
	}
	return &Token{UID: string(uid), Claims: claims}, nil
}

func (m *Memory) UpdateEmail(ctx context.Context, uid types.ID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUID[uid]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "account not found")
	}
	email = normEmail(email)
	if email == a.email {
		return nil
	}
	if _, taken := m.byEmail[email]; taken {
		return ErrEmailTaken
	}
	delete(m.byEmail, a.email)
	a.email = email
	m.byEmail[email] = a
	return nil
}

func (m *Memory) SetRole(ctx context.Context, uid types.ID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUID[uid]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "account not found")
	}
	a.claims[RoleClaim] = role
	return nil
}

func (m *Memory) SignOut(ctx context.Context, uid types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, owner := range m.tokens {
		if owner == uid {
			delete(m.tokens, tok)
		}
	}
	return nil
}

func (m *Memory) DeleteAccount(ctx context.Context, uid types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUID[uid]
	if !ok {
		return nil
	}
	delete(m.byUID, uid)
	delete(m.byEmail, a.email)
	for tok, owner := range m.tokens {
		if owner == uid {
			delete(m.tokens, tok)
		}
	}
	return nil
}
