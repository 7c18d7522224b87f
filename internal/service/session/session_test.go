package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
)

type fakeNotifier struct {
	mu    sync.Mutex
	users []models.User
	err   error
}

func (f *fakeNotifier) NotifyUserRegistered(_ context.Context, u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
	return f.err
}

var testSecret = []byte("test-secret")

func newTestManager() (*Manager, *store.MemoryStore, *fakeNotifier) {
	s := store.NewMemory()
	n := &fakeNotifier{}
	m := NewManager(Deps{Store: s, Remote: n}, Config{Secret: testSecret, TTL: time.Hour})
	return m, s, n
}

func TestLogin_FixedUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, s, _ := newTestManager()

	res, err := m.Login(ctx, "admin@manuzon.com", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "1", res.Session.User.ID)
	assert.True(t, IsAdmin(res.Session.User))
	assert.NotEmpty(t, res.Token)

	_, err = s.Get(ctx, store.SessionKey(res.Session.ID))
	require.NoError(t, err, "session is persisted")

	res, err = m.Login(ctx, "  User@Example.com ", "user123")
	require.NoError(t, err)
	assert.Equal(t, "Mario", res.Session.User.FirstName)
	assert.False(t, IsAdmin(res.Session.User))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, s, _ := newTestManager()

	_, err := m.Login(ctx, "admin@manuzon.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login(ctx, "nobody@example.com", "admin123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	keys, err := s.Keys(ctx, "auth:session:")
	require.NoError(t, err)
	assert.Empty(t, keys, "no session written on failure")
}

func TestLogin_LatencyHonoursContext(t *testing.T) {
	t.Parallel()

	m := NewManager(Deps{Store: store.NewMemory()}, Config{Secret: testSecret, Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Login(ctx, "admin@manuzon.com", "admin123")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAuthenticateAndLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager()

	res, err := m.Login(ctx, "user@example.com", "user123")
	require.NoError(t, err)

	sess, err := m.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, sess.ID)

	require.NoError(t, m.Logout(ctx, sess.ID))
	_, err = m.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, m.Logout(ctx, sess.ID), "logout is unconditional")
	require.NoError(t, m.Logout(ctx, ""))

	_, err = m.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCurrent_ExpiredSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, s, _ := newTestManager()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	res, err := m.Login(ctx, "user@example.com", "user123")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = m.Current(ctx, res.Session.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = s.Get(ctx, store.SessionKey(res.Session.ID))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, n := newTestManager()

	res, err := m.Register(ctx, RegisterData{Email: "Nuovo@Example.com", Password: "pw", FirstName: "Anna", LastName: "Bianchi"})
	require.NoError(t, err)
	u := res.Session.User
	assert.Equal(t, "nuovo@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEmpty(t, u.ID)
	require.Len(t, n.users, 1)
	assert.Equal(t, u.ID, n.users[0].ID)

	sess, err := m.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.User.ID)

	again, err := m.Login(ctx, "nuovo@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.Session.User.ID)

	_, err = m.Register(ctx, RegisterData{Email: "nuovo@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrEmailAlreadyRegistered)
}

func TestRegister_Rejects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, n := newTestManager()

	_, err := m.Register(ctx, RegisterData{Email: "admin@manuzon.com", Password: "x"})
	assert.ErrorIs(t, err, ErrEmailAlreadyRegistered)

	_, err = m.Register(ctx, RegisterData{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = m.Register(ctx, RegisterData{Email: "a@b.it"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, n.users)
}

func TestRegister_RemoteFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	m, _, n := newTestManager()
	n.err = errors.New("connection refused")

	_, err := m.Register(context.Background(), RegisterData{Email: "x@y.it", Password: "pw"})
	require.NoError(t, err)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, taken := 0, 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Register(ctx, RegisterData{Email: "race@example.com", Password: "pw"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrEmailAlreadyRegistered):
				taken++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, taken)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager()

	_, err := m.UpdateProfile(ctx, "missing", ProfilePatch{})
	require.ErrorIs(t, err, ErrNotAuthenticated)

	res, err := m.Login(ctx, "user@example.com", "user123")
	require.NoError(t, err)

	city, phone := "Milano", "333"
	u, err := m.UpdateProfile(ctx, res.Session.ID, ProfilePatch{City: &city, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Milano", u.City)
	assert.Equal(t, "333", u.Phone)
	assert.Equal(t, "Mario", u.FirstName)
	assert.Equal(t, "user@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)

	sess, err := m.Current(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Milano", sess.User.City)
}

func TestUpdateProfile_RegisteredAccountKeepsChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager()

	res, err := m.Register(ctx, RegisterData{Email: "p@example.com", Password: "pw", FirstName: "P"})
	require.NoError(t, err)
	name := "Paola"
	_, err = m.UpdateProfile(ctx, res.Session.ID, ProfilePatch{FirstName: &name})
	require.NoError(t, err)

	again, err := m.Login(ctx, "p@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Paola", again.Session.User.FirstName)
}

// gatedStore blocks the first session read after arm until release is closed.
type gatedStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	armed   bool
	reading chan struct{}
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := g.MemoryStore.Get(ctx, key)
	g.mu.Lock()
	hold := g.armed && strings.HasPrefix(key, "auth:session:")
	if hold {
		g.armed = false
	}
	g.mu.Unlock()
	if hold {
		close(g.reading)
		<-g.release
	}
	return raw, err
}

func TestUpdateProfile_LogoutIsNotUndone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gs := &gatedStore{MemoryStore: store.NewMemory(), reading: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(Deps{Store: gs}, Config{Secret: testSecret, TTL: time.Hour})

	res, err := m.Login(ctx, "user@example.com", "user123")
	require.NoError(t, err)

	gs.mu.Lock()
	gs.armed = true
	gs.mu.Unlock()

	city := "Torino"
	updated := make(chan error, 1)
	go func() {
		_, err := m.UpdateProfile(ctx, res.Session.ID, ProfilePatch{City: &city})
		updated <- err
	}()
	<-gs.reading

	loggedOut := make(chan error, 1)
	go func() { loggedOut <- m.Logout(ctx, res.Session.ID) }()
	time.Sleep(20 * time.Millisecond)
	close(gs.release)

	require.NoError(t, <-updated)
	require.NoError(t, <-loggedOut)

	_, err = m.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = gs.MemoryStore.Get(ctx, store.SessionKey(res.Session.ID))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegister_UnreadableAccountsAreKeptAside(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, s, _ := newTestManager()
	require.NoError(t, s.Set(ctx, store.KeyRegisteredUsers, []byte(`[{"user":{"id":"old"`)))

	_, err := m.Register(ctx, RegisterData{Email: "fresh@example.com", Password: "pw"})
	require.NoError(t, err)

	keys, err := s.Keys(ctx, store.KeyRegisteredUsers+":corrupt:")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	raw, err := s.Get(ctx, keys[0])
	require.NoError(t, err)
	assert.Equal(t, `[{"user":{"id":"old"`, string(raw))

	_, err = m.Login(ctx, "fresh@example.com", "pw")
	require.NoError(t, err)
}
