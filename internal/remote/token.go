package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer token attached to upstream requests.
// An empty token means requests go out unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// FileTokenSource reads the bearer token from a file and reloads it when the file changes.
type FileTokenSource struct {
	path string
	dir  string
	base string

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewFileTokenSource reads the token file once. The file must exist.
func NewFileTokenSource(path string) (*FileTokenSource, error) {
	if path == "" {
		return nil, errors.New("token file path is required")
	}
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	s := &FileTokenSource{path: path, dir: dir, base: filepath.Base(path)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileTokenSource) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt returns the exp claim of the current token when it is a JWT.
func (s *FileTokenSource) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

// Reload re-reads the token file.
func (s *FileTokenSource) Reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	token = strings.TrimPrefix(token, "Bearer ")

	exp := tokenExpiry(token)
	if !exp.IsZero() && exp.Before(time.Now()) {
		logger.WithComponent("token").Warnf("token in %s expired at %s", s.path, exp.Format(time.RFC3339))
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = exp
	s.mu.Unlock()
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the backend
// is the one that verifies. Non-JWT tokens have no known expiry.
func tokenExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// StartWatcher reloads the token whenever the file changes. The parent directory
// is watched so atomic replace sequences (temp+rename) are still observed.
// Cancel ctx to stop the goroutine and close the watcher.
func (s *FileTokenSource) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	log := logger.WithComponent("token")
	reload := func() {
		if err := s.Reload(); err != nil {
			log.Errorf("token reload failed: %v", err)
			return
		}
		log.Info("bearer token reloaded")
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		}

		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != s.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("watcher error: %v", err)
			}
		}
	}()

	return nil
}
