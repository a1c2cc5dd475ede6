package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToken(t *testing.T, path, token string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(token+"\n"), 0o600))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestStaticToken(t *testing.T) {
	assert.Equal(t, "abc", StaticToken("abc").Token())
}

func TestNewFileTokenSource(t *testing.T) {
	_, err := NewFileTokenSource("")
	assert.Error(t, err)

	_, err = NewFileTokenSource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "Bearer opaque-token")

	ts, err := NewFileTokenSource(path)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", ts.Token())

	_, ok := ts.ExpiresAt()
	assert.False(t, ok, "opaque tokens have no expiry")
}

func TestFileTokenSource_JWTExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, signedToken(t, exp))

	ts, err := NewFileTokenSource(path)
	require.NoError(t, err)

	got, ok := ts.ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(exp), "expected %s, got %s", exp, got)
}

func TestFileTokenSource_WatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	writeToken(t, path, "first")

	ts, err := NewFileTokenSource(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ts.StartWatcher(ctx))

	writeToken(t, path, "second")

	assert.Eventually(t, func() bool {
		return ts.Token() == "second"
	}, 3*time.Second, 50*time.Millisecond)
}
