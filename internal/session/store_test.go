package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const maxAge = 30 * 24 * time.Hour

func newMemoryStore(t *testing.T) (*Store, *fakeClock, *MemoryBackend) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	backend := NewMemoryBackendWithClock(clock.Now)
	return NewStore(backend, maxAge, WithClock(clock.Now)), clock, backend
}

func TestCreateThenGet(t *testing.T) {
	store, clock, _ := newMemoryStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "u-1", "ana@example.com", auth.RoleInstructor)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.Equal(t, "u-1", sess.UserID)
	assert.Equal(t, "ana@example.com", sess.Email)
	assert.Equal(t, auth.RoleInstructor, sess.Role)
	assert.Equal(t, clock.Now(), sess.CreatedAt)
	assert.Equal(t, clock.Now().Add(maxAge), sess.ExpiresAt)
}

func TestCreate_UniqueIDs(t *testing.T) {
	store, _, _ := newMemoryStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := store.Create(context.Background(), "u-1", "", auth.RoleUser)
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestExtend_SlidesExpiry(t *testing.T) {
	store, clock, _ := newMemoryStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "u-1", "", auth.RoleUser)
	require.NoError(t, err)

	// Activity every 20 days keeps the session alive well past the original maxAge.
	var last time.Time
	for i := 0; i < 5; i++ {
		clock.Advance(20 * 24 * time.Hour)

		sess, err := store.Extend(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, sess, "extension %d", i)
		assert.True(t, sess.ExpiresAt.After(last))
		assert.Equal(t, clock.Now().Add(maxAge), sess.ExpiresAt)
		last = sess.ExpiresAt
	}

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestExpiredIsIndistinguishableFromAbsent(t *testing.T) {
	store, clock, _ := newMemoryStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "u-1", "", auth.RoleUser)
	require.NoError(t, err)

	clock.Advance(maxAge)

	expired, err := store.Get(ctx, id)
	require.NoError(t, err)
	never, err := store.Get(ctx, "never-existed")
	require.NoError(t, err)

	assert.Nil(t, expired)
	assert.Nil(t, never)

	renewed, err := store.Extend(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, renewed, "extend on an expired session is a no-op")
}

func TestDelete_Idempotent(t *testing.T) {
	store, _, backend := newMemoryStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "u-1", "", auth.RoleUser)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, ""))

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Zero(t, backend.Len())
}

type brokenBackend struct{}

func (brokenBackend) Save(context.Context, Session, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}

func (brokenBackend) Load(context.Context, string) (*Session, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (brokenBackend) Remove(context.Context, string) error {
	return errors.New("dial tcp: connection refused")
}

func TestBackendFailureIsUnavailable(t *testing.T) {
	store := NewStore(brokenBackend{}, maxAge)
	ctx := context.Background()

	_, err := store.Create(ctx, "u-1", "", auth.RoleUser)
	assert.ErrorIs(t, err, ErrUnavailable)

	sess, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, sess)

	assert.ErrorIs(t, store.Delete(ctx, "abc"), ErrUnavailable)
}

type slowBackend struct{ MemoryBackend }

func (s *slowBackend) Load(ctx context.Context, _ string) (*Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeoutIsUnavailable(t *testing.T) {
	store := NewStore(&slowBackend{}, maxAge, WithTimeout(20*time.Millisecond))

	sess, err := store.Get(context.Background(), "abc")
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewStore(NewRedisBackend(client), time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "u-9", "lee@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, auth.RoleAdmin, sess.Role)
	assert.Equal(t, time.Hour, mr.TTL("session:"+id))

	mr.FastForward(30 * time.Minute)
	_, err = store.Extend(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("session:"+id), "extension resets the key ttl")

	require.NoError(t, store.Delete(ctx, id))
	assert.False(t, mr.Exists("session:"+id))
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: InsecureCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))
}

func TestSetCookie_SecureUsesHostPrefix(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "tok", time.Now().Add(time.Hour), CookieOptions{Secure: true})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/", cookies[0].Path)
}
