package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workgate/workgate/internal/session"
)

// fakeRefresher counts calls and mints credentials expiring an hour out.
type fakeRefresher struct {
	calls atomic.Int64
	err   error
	delay time.Duration

	mu      sync.Mutex
	rotated string // refresh token to return; "" keeps the old one
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*session.OAuthCredential, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	rotated := f.rotated
	f.mu.Unlock()
	if rotated == "" {
		rotated = refreshToken
	}
	return &session.OAuthCredential{
		AccessToken:  fmt.Sprintf("ya29.minted-%d", f.calls.Load()),
		RefreshToken: rotated,
		TokenType:    "Bearer",
		ExpiryDate:   time.Now().Add(time.Hour),
	}, nil
}

func storeWithCredential(t *testing.T, expiry time.Time) (*session.MemoryStore, *session.Session) {
	t.Helper()
	store := session.NewMemoryStoreWithInterval(session.TTLs{}, time.Hour, slog.Default())
	t.Cleanup(store.Close)

	sess := &session.Session{
		ID:            session.NewID(),
		UserEmail:     "user@example.com",
		Authenticated: true,
		Tokens: &session.OAuthCredential{
			AccessToken:  "ya29.original",
			RefreshToken: "1//refresh",
			TokenType:    "Bearer",
			ExpiryDate:   expiry,
		},
	}
	require.NoError(t, store.PutSession(context.Background(), sess))
	return store, sess
}

func TestEnsureFresh_FreshCredentialNoIO(t *testing.T) {
	store, sess := storeWithCredential(t, time.Now().Add(time.Hour))
	refresher := &fakeRefresher{}
	o := NewOrchestrator(store, refresher, slog.Default())

	cred, err := o.EnsureFresh(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "ya29.original", cred.AccessToken)
	assert.Equal(t, int64(0), refresher.calls.Load(), "fresh credential must not trigger upstream calls")
}

func TestEnsureFresh_StaleCredentialRefreshesOnceAndPersists(t *testing.T) {
	// Expires inside the 5 minute buffer.
	store, sess := storeWithCredential(t, time.Now().Add(time.Minute))
	refresher := &fakeRefresher{}
	o := NewOrchestrator(store, refresher, slog.Default())

	cred, err := o.EnsureFresh(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refresher.calls.Load())
	assert.True(t, cred.ExpiryDate.After(time.Now()))
	assert.Equal(t, "1//refresh", cred.RefreshToken, "unrotated refresh token is preserved")

	// The refreshed credential must be persisted under the session id.
	stored, err := store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.AccessToken, stored.Tokens.AccessToken)
}

func TestEnsureFresh_ExpiryExactlyAtBufferIsStale(t *testing.T) {
	now := time.Now()
	store, sess := storeWithCredential(t, now.Add(RefreshBuffer))
	refresher := &fakeRefresher{}
	o := NewOrchestrator(store, refresher, slog.Default(), WithClock(func() time.Time { return now }))

	_, err := o.EnsureFresh(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refresher.calls.Load())
}

func TestEnsureFresh_RotatedRefreshTokenPersisted(t *testing.T) {
	store, sess := storeWithCredential(t, time.Now().Add(-time.Minute))
	refresher := &fakeRefresher{rotated: "1//rotated"}
	o := NewOrchestrator(store, refresher, slog.Default())

	cred, err := o.EnsureFresh(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "1//rotated", cred.RefreshToken)

	stored, err := store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "1//rotated", stored.Tokens.RefreshToken)
}

func TestEnsureFresh_InvalidGrantIsReauthRequired(t *testing.T) {
	store, sess := storeWithCredential(t, time.Now().Add(-time.Minute))
	refresher := &fakeRefresher{err: &InvalidGrantError{Err: errors.New("invalid_grant")}}
	o := NewOrchestrator(store, refresher, slog.Default())

	_, err := o.EnsureFresh(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, ReauthRequired(err))

	// The stale credential must not have been overwritten.
	stored, err := store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "ya29.original", stored.Tokens.AccessToken)
}

func TestEnsureFresh_TimeoutBehavesLikeFailure(t *testing.T) {
	store, sess := storeWithCredential(t, time.Now().Add(-time.Minute))
	refresher := &fakeRefresher{delay: 200 * time.Millisecond}
	o := NewOrchestrator(store, refresher, slog.Default(), WithRefreshTimeout(20*time.Millisecond))

	_, err := o.EnsureFresh(context.Background(), sess)
	require.Error(t, err)
	assert.False(t, ReauthRequired(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestEnsureFresh_ConcurrentRequestsCollapse(t *testing.T) {
	store, sess := storeWithCredential(t, time.Now().Add(-time.Minute))
	refresher := &fakeRefresher{delay: 50 * time.Millisecond}
	o := NewOrchestrator(store, refresher, slog.Default())

	const n = 8
	var wg sync.WaitGroup
	creds := make([]*session.OAuthCredential, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds[i], errs[i] = o.EnsureFresh(context.Background(), sess)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, creds[i])
	}
	assert.Equal(t, int64(1), refresher.calls.Load(), "singleflight should collapse concurrent refreshes")
}

func TestEnsureFresh_ReReadSkipsRefreshWhenAlreadyRotated(t *testing.T) {
	store, sess := storeWithCredential(t, time.Now().Add(-time.Minute))
	refresher := &fakeRefresher{}
	o := NewOrchestrator(store, refresher, slog.Default())

	// Another instance already refreshed and persisted a fresh credential.
	require.NoError(t, store.StoreTokens(context.Background(), sess.ID, &session.OAuthCredential{
		AccessToken:  "ya29.already-fresh",
		RefreshToken: "1//refresh",
		ExpiryDate:   time.Now().Add(time.Hour),
	}))

	// The caller still holds the stale snapshot.
	cred, err := o.EnsureFresh(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "ya29.already-fresh", cred.AccessToken)
	assert.Equal(t, int64(0), refresher.calls.Load(), "re-read should avoid a redundant refresh")
}

func TestEnsureFresh_NoCredentials(t *testing.T) {
	store := session.NewMemoryStoreWithInterval(session.TTLs{}, time.Hour, slog.Default())
	t.Cleanup(store.Close)
	o := NewOrchestrator(store, &fakeRefresher{}, slog.Default())

	_, err := o.EnsureFresh(context.Background(), &session.Session{ID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no OAuth credentials")
}
