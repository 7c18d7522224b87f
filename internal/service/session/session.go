// Package session authenticates shoppers against a fixed account set plus self-registered
// accounts and keeps their sessions in the key-value store.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var (
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrValidation             = errors.New("validation")
)

type Notifier interface {
	NotifyUserRegistered(ctx context.Context, u models.User) error
}

type Session struct {
	ID        string      `json:"id"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Result is what a successful login or registration hands back to the client.
type Result struct {
	Session Session
	Token   string
}

type RegisterData struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type ProfilePatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Avatar    *string `json:"avatar"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	ZipCode   *string `json:"zipCode"`
	Country   *string `json:"country"`
}

type account struct {
	User         models.User `json:"user"`
	PasswordHash string      `json:"passwordHash"`
}

var fixedAccounts = sync.OnceValue(func() []account {
	return []account{
		{
			User:         models.User{ID: "1", Email: "admin@manuzon.com", FirstName: "Admin", LastName: "Manuzon", Role: models.RoleAdmin},
			PasswordHash: hash.MustHash("admin123"),
		},
		{
			User:         models.User{ID: "2", Email: "user@example.com", FirstName: "Mario", LastName: "Rossi", Role: models.RoleUser},
			PasswordHash: hash.MustHash("user123"),
		},
	}
})

type Deps struct {
	Store   store.KeyValueStore
	Remote  Notifier
	Events  mykafka.Publisher
	Metrics *metrics.Metrics
}

type Config struct {
	Secret  []byte
	TTL     time.Duration
	Latency time.Duration
}

type Manager struct {
	store   store.KeyValueStore
	remote  Notifier
	events  mykafka.Publisher
	metrics *metrics.Metrics

	secret  []byte
	ttl     time.Duration
	latency time.Duration
	now     func() time.Time

	// guards the registered-accounts blob
	mu sync.Mutex
	// serialises session rewrites against Logout
	sessMu sync.Mutex
}

func NewManager(d Deps, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{
		store:   d.Store,
		remote:  d.Remote,
		events:  d.Events,
		metrics: d.Metrics,
		secret:  cfg.Secret,
		ttl:     cfg.TTL,
		latency: cfg.Latency,
		now:     time.Now,
	}
}

func IsAdmin(u models.User) bool { return u.Role == models.RoleAdmin }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks the credentials and opens a new session.
func (m *Manager) Login(ctx context.Context, email, password string) (Result, error) {
	l := logging.FromContext(ctx).With("svc", "session.login")
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}

	email = normalizeEmail(email)
	acc, ok, err := m.findAccount(ctx, email)
	if err != nil {
		return Result{}, err
	}
	if !ok || !hash.CheckPassword(acc.PasswordHash, password) {
		l.Warn("login_failed", "reason", "invalid credentials")
		return Result{}, ErrInvalidCredentials
	}

	res, err := m.start(ctx, acc.User)
	if err != nil {
		return Result{}, err
	}
	l.Info("login_successful", "user_id", acc.User.ID)
	return res, nil
}

func (m *Manager) Register(ctx context.Context, data RegisterData) (Result, error) {
	l := logging.FromContext(ctx).With("svc", "session.register")

	email := normalizeEmail(data.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return Result{}, fmt.Errorf("email is invalid: %w", ErrValidation)
	}
	if data.Password == "" {
		return Result{}, fmt.Errorf("password is required: %w", ErrValidation)
	}
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}

	pwHash, err := hash.HashPassword(data.Password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return Result{}, err
	}

	now := m.now().UTC()
	u := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: strings.TrimSpace(data.FirstName),
		LastName:  strings.TrimSpace(data.LastName),
		Role:      models.RoleUser,
		CreatedAt: &now,
	}

	m.mu.Lock()
	if _, ok, err := m.findAccount(ctx, email); err != nil {
		m.mu.Unlock()
		return Result{}, err
	} else if ok {
		m.mu.Unlock()
		l.Warn("register_error", "reason", "email already registered")
		return Result{}, ErrEmailAlreadyRegistered
	}
	accounts, err := m.registered(ctx)
	if err == nil {
		err = store.SetJSON(ctx, m.store, store.KeyRegisteredUsers, append(accounts, account{User: u, PasswordHash: pwHash}))
	}
	m.mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("save account: %w", err)
	}

	res, err := m.start(ctx, u)
	if err != nil {
		return Result{}, err
	}

	if m.remote != nil {
		if err := m.remote.NotifyUserRegistered(ctx, u); err != nil {
			l.Warn("remote_call_failed", "call", "user_registered", "error", err)
			m.metrics.RemoteFailure("user_registered")
		}
	}
	mykafka.Emit(ctx, m.events, mykafka.TopicUser, u.ID, map[string]any{
		"type":    "user_registered",
		"user_id": u.ID,
		"email":   u.Email,
	})
	l.Info("register_successful", "user_id", u.ID)
	return res, nil
}

// Logout drops the session whether or not it exists.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	return m.deleteSession(ctx, sessionID)
}

func (m *Manager) deleteSession(ctx context.Context, sessionID string) error {
	err := m.store.Delete(ctx, store.SessionKey(sessionID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	if err == nil {
		m.metrics.SessionEnded()
	}
	return nil
}

func (m *Manager) Current(ctx context.Context, sessionID string) (Session, error) {
	s, expired, err := m.load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if expired {
		_ = m.Logout(ctx, sessionID)
		return Session{}, ErrNotAuthenticated
	}
	return s, nil
}

func (m *Manager) load(ctx context.Context, sessionID string) (Session, bool, error) {
	if sessionID == "" {
		return Session{}, false, ErrNotAuthenticated
	}
	var s Session
	err := store.GetJSON(ctx, m.store, store.SessionKey(sessionID), &s)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Session{}, false, ErrNotAuthenticated
	case err != nil:
		logging.FromContext(ctx).Warn("session_unreadable", "error", err)
		return Session{}, false, ErrNotAuthenticated
	}
	expired := !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt)
	return s, expired, nil
}

// Authenticate resolves a bearer token to its live session.
func (m *Manager) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := tokens.AccessClaimsFromToken(token, m.secret)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	s, err := m.Current(ctx, claims.SessionID)
	if err != nil {
		return Session{}, err
	}
	if s.User.ID != claims.Subject {
		return Session{}, ErrNotAuthenticated
	}
	return s, nil
}

func (m *Manager) UpdateProfile(ctx context.Context, sessionID string, patch ProfilePatch) (models.User, error) {
	if err := m.wait(ctx); err != nil {
		return models.User{}, err
	}
	// a Logout landing between the read and the write must not bring the session back
	m.sessMu.Lock()
	s, expired, err := m.load(ctx, sessionID)
	if err == nil && expired {
		err = m.deleteSession(ctx, sessionID)
		if err == nil {
			err = ErrNotAuthenticated
		}
	}
	if err != nil {
		m.sessMu.Unlock()
		return models.User{}, err
	}
	s.User = applyProfile(s.User, patch)
	err = store.SetJSON(ctx, m.store, store.SessionKey(s.ID), s)
	m.sessMu.Unlock()
	if err != nil {
		return models.User{}, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	accounts, err := m.registered(ctx)
	if err != nil {
		return s.User, nil
	}
	for i := range accounts {
		if accounts[i].User.ID == s.User.ID {
			accounts[i].User = s.User
			if err := store.SetJSON(ctx, m.store, store.KeyRegisteredUsers, accounts); err != nil {
				logging.FromContext(ctx).Warn("account_update_failed", "user_id", s.User.ID, "error", err)
			}
			break
		}
	}
	return s.User, nil
}

func applyProfile(u models.User, p ProfilePatch) models.User {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.Avatar, p.Avatar)
	set(&u.Phone, p.Phone)
	set(&u.Address, p.Address)
	set(&u.City, p.City)
	set(&u.ZipCode, p.ZipCode)
	set(&u.Country, p.Country)
	return u
}

func (m *Manager) start(ctx context.Context, u models.User) (Result, error) {
	now := m.now().UTC()
	s := Session{
		ID:        uuid.NewString(),
		User:      u,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	token, err := tokens.SignAccess(m.secret, u.ID, u.Role, s.ID, s.ExpiresAt)
	if err != nil {
		return Result{}, fmt.Errorf("sign token: %w", err)
	}
	if err := store.SetJSON(ctx, m.store, store.SessionKey(s.ID), s); err != nil {
		return Result{}, fmt.Errorf("save session: %w", err)
	}
	m.metrics.SessionStarted()
	return Result{Session: s, Token: token}, nil
}

func (m *Manager) findAccount(ctx context.Context, email string) (account, bool, error) {
	for _, a := range fixedAccounts() {
		if a.User.Email == email {
			return a, true, nil
		}
	}
	accounts, err := m.registered(ctx)
	if err != nil {
		return account{}, false, err
	}
	for _, a := range accounts {
		if a.User.Email == email {
			return a, true, nil
		}
	}
	return account{}, false, nil
}

// registered reads the self-registered accounts. A blob that no longer decodes is
// quarantined and the list starts over empty.
func (m *Manager) registered(ctx context.Context) ([]account, error) {
	var accounts []account
	err := store.GetJSON(ctx, m.store, store.KeyRegisteredUsers, &accounts)
	switch {
	case err == nil, errors.Is(err, store.ErrNotFound):
		return accounts, nil
	case errors.Is(err, store.ErrMalformed):
		backup, qerr := store.Quarantine(ctx, m.store, store.KeyRegisteredUsers, m.now())
		if qerr != nil {
			return nil, fmt.Errorf("read accounts: %w", qerr)
		}
		logging.FromContext(ctx).Warn("accounts_quarantined", "backup", backup, "error", err)
		return nil, nil
	default:
		return nil, fmt.Errorf("read accounts: %w", err)
	}
}

func (m *Manager) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return nil
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
