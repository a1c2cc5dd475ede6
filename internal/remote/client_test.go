package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brand struct {
	ID    int64  `json:"id" validate:"required"`
	Marca string `json:"marca" validate:"required"`
}

type brandPage struct {
	Data []brand `json:"data" validate:"required,dive"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	assert.Error(t, err)
}

func TestGet_DecodesAndSendsParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/brands", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("pagina"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, `{"data":[{"id":1,"marca":"Bosch"},{"id":2,"marca":"NGK"}]}`)
	})

	page, err := Get[brandPage](context.Background(), c, "/brands", url.Values{"pagina": {"2"}})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "NGK", page.Data[1].Marca)
}

func TestGet_Unwrap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"id":7,"marca":"Denso"}}`)
	})

	b, err := Get[brand](context.Background(), c, "brands/7", nil, Unwrap())
	require.NoError(t, err)
	assert.Equal(t, int64(7), b.ID)
}

func TestGet_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		opts []CallOption
	}{
		{"invalid json", `{"data":`, nil},
		{"wrong type", `{"data":"nope"}`, nil},
		{"missing required field", `{"data":[{"id":1}]}`, nil},
		{"missing data envelope", `{"id":1,"marca":"x"}`, []CallOption{Unwrap()}},
		{"empty body", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			var err error
			if len(tt.opts) > 0 {
				_, err = Get[brand](context.Background(), c, "/brands/1", nil, tt.opts...)
			} else {
				_, err = Get[brandPage](context.Background(), c, "/brands", nil)
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
			assert.Equal(t, "Invalid server response", Message(err))
		})
	}
}

func TestHTTPError_Classification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusBadRequest, errdefs.IsInvalidArgument},
		{http.StatusUnprocessableEntity, errdefs.IsInvalidArgument},
		{http.StatusUnauthorized, errdefs.IsUnauthorized},
		{http.StatusForbidden, errdefs.IsPermissionDenied},
		{http.StatusNotFound, errdefs.IsNotFound},
		{http.StatusConflict, errdefs.IsConflict},
		{http.StatusTooManyRequests, errdefs.IsResourceExhausted},
		{http.StatusBadGateway, errdefs.IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			err := Delete(context.Background(), c, "/brands/1")
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.Status)
			assert.True(t, tt.check(err), "unexpected category for %d", tt.status)
			assert.False(t, errors.Is(err, ErrSchemaMismatch))
		})
	}
}

func TestHTTPError_BackendMessage(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantMsg    string
		wantFields int
	}{
		{"nested error object", `{"error":{"message":"Marca duplicada","validation_errors":[{"field":"marca","message":"ya existe"}]}}`, "Marca duplicada", 1},
		{"error string", `{"error":"sin permisos"}`, "sin permisos", 0},
		{"top level message", `{"message":"No encontrado"}`, "No encontrado", 0},
		{"plain text", `boom`, "boom", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := Post[brand](context.Background(), c, "/brands", map[string]string{"marca": "x"})
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.wantMsg, httpErr.Message)
			assert.Len(t, httpErr.Fields, tt.wantFields)
			assert.Equal(t, tt.wantMsg, Message(err))
		})
	}
}

func TestPost_SendsJSONAndAllowsEmptyAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Bosch", got["marca"])
		w.WriteHeader(http.StatusCreated)
	})

	out, err := Post[brand](context.Background(), c, "/brands", map[string]string{"marca": "Bosch"})
	require.NoError(t, err)
	assert.Equal(t, brand{}, out)
}

func TestPut_UnwrapsEntity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/brands/3", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":{"id":3,"marca":"Valeo"}}`)
	})

	out, err := Put[brand](context.Background(), c, "/brands/3", brand{Marca: "Valeo"}, Unwrap())
	require.NoError(t, err)
	assert.Equal(t, "Valeo", out.Marca)
}

func TestTransportError_IsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(base)
	require.NoError(t, err)

	err = Delete(context.Background(), c, "/brands/1")
	require.Error(t, err)
	assert.True(t, errdefs.IsUnavailable(err))
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
}

func TestBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":[]}`)
	}, WithTokenSource(StaticToken("secret")))

	page, err := Get[brandPage](context.Background(), c, "/brands", nil)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestRateLimit_HonoursContext(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"data":[]}`)
	}, WithRateLimit(0.001, 1))

	_, err := Get[brandPage](context.Background(), c, "/brands", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Get[brandPage](ctx, c, "/brands", nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusNotFound, StatusCode(&HTTPError{Status: 404}))
	assert.Equal(t, http.StatusBadGateway, StatusCode(&HTTPError{Status: 503}))
	assert.Equal(t, http.StatusBadGateway, StatusCode(ErrSchemaMismatch))
	assert.Equal(t, http.StatusGatewayTimeout, StatusCode(context.DeadlineExceeded))
	assert.Equal(t, http.StatusPreconditionFailed, StatusCode(errdefs.ErrFailedPrecondition))
	assert.Equal(t, http.StatusMethodNotAllowed, StatusCode(errdefs.ErrNotImplemented))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}

func TestGet_MaybeUnwrap(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrapped object", `{"data":[{"id":1,"marca":"A"}]}`},
		{"bare array", `[{"id":1,"marca":"A"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			out, err := Get[[]brand](context.Background(), c, "/brands", nil, MaybeUnwrap())
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, "A", out[0].Marca)
		})
	}
}
