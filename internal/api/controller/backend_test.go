package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bassista/go_backoffice/internal/api/middleware"
	"github.com/bassista/go_backoffice/internal/cache"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/bassista/go_backoffice/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// backend is an in-memory stand-in for the catalog API.
type backend struct {
	mu       sync.Mutex
	brands   map[int64]string
	nextID   int64
	perms    map[string][]repository.PermissionName
	requests []string
}

func newBackend() *backend {
	return &backend{
		brands: map[int64]string{1: "Bosch", 2: "NGK", 3: "Valeo"},
		nextID: 4,
		perms:  map[string][]repository.PermissionName{"7": {{Name: "brands.view"}}},
	}
}

func (b *backend) seen(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api")
	b.requests = append(b.requests, r.Method+" "+path)

	switch {
	case r.Method == http.MethodGet && path == "/brands":
		b.listBrands(w, r)
	case strings.HasPrefix(path, "/brands/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(path, "/brands/"), 10, 64)
		b.brand(w, r, id)
	case r.Method == http.MethodPost && path == "/brands":
		var in repository.BrandInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Marca == "Dup" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": map[string]any{
				"message":           "Marca duplicada",
				"validation_errors": []remote.FieldError{{Field: "marca", Message: "ya existe"}},
			}})
			return
		}
		id := b.nextID
		b.nextID++
		b.brands[id] = in.Marca
		writeJSON(w, http.StatusCreated, repository.BrandDetail{ID: id, Marca: in.Marca})
	case r.Method == http.MethodGet && path == "/users":
		writeJSON(w, http.StatusOK, repository.Page[repository.User]{Data: []repository.User{{ID: 7, Nickname: "ana"}}})
	case r.Method == http.MethodGet && path == "/permissions/list":
		_, _ = io.WriteString(w, `[{"name":"brands.view","categoria":"Catalogo"},{"name":"users.edit"}]`)
	case r.Method == http.MethodGet && path == "/users/permissions":
		perms := []repository.Permission{}
		for _, p := range b.perms[r.URL.Query().Get("usuario")] {
			perms = append(perms, repository.Permission{Name: p.Name})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": perms})
	case r.Method == http.MethodPut && path == "/users/permissions":
		var in repository.PermissionsUpdate
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.perms[strconv.FormatInt(in.Usuario, 10)] = in.Permisos
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

func (b *backend) listBrands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("marca") == "boom" {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Sin permiso"})
		return
	}

	ids := make([]int64, 0, len(b.brands))
	for id, name := range b.brands {
		if f := q.Get("marca"); f == "" || strings.Contains(strings.ToLower(name), strings.ToLower(f)) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	page, _ := strconv.Atoi(q.Get(repository.ParamPage))
	size, _ := strconv.Atoi(q.Get(repository.ParamPageSize))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 25
	}
	last := (len(ids) + size - 1) / size
	if last == 0 {
		last = 1
	}

	data := []repository.Brand{}
	for i := (page - 1) * size; i < len(ids) && i < page*size; i++ {
		data = append(data, repository.Brand{ID: ids[i], Marca: b.brands[ids[i]]})
	}
	writeJSON(w, http.StatusOK, repository.Page[repository.Brand]{
		Data: data,
		Meta: &repository.Meta{CurrentPage: page, LastPage: last, PerPage: size, Total: len(ids)},
	})
}

func (b *backend) brand(w http.ResponseWriter, r *http.Request, id int64) {
	name, ok := b.brands[id]
	switch r.Method {
	case http.MethodGet:
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Marca no encontrada"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": repository.BrandDetail{ID: id, Marca: name, CodigoInterno: id * 10}})
	case http.MethodPut:
		var in repository.BrandInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.brands[id] = in.Marca
		writeJSON(w, http.StatusOK, map[string]any{"data": repository.BrandDetail{ID: id, Marca: in.Marca, CodigoInterno: id * 10}})
	case http.MethodDelete:
		if id == 3 {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Marca en uso"})
			return
		}
		delete(b.brands, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// testAPI is a gin engine wired like the real routes, over a fake backend.
type testAPI struct {
	t       *testing.T
	engine  *gin.Engine
	backend *backend
	session string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	be := newBackend()
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	client, err := remote.New(srv.URL + "/api")
	require.NoError(t, err)
	reg := repository.NewRegistry(client, cache.NewStore(cache.Options{}), 20)

	r := gin.New()
	r.Use(middleware.SessionMiddleware(session.NewStore(time.Minute, nil)))
	api := r.Group("/api")

	NewResourceController[repository.Brand, repository.BrandDetail, repository.BrandInput](reg.Brands, nil, 50).
		RegisterRoutes(api.Group("/brands"), api.Group("/deletions/brands"))
	NewResourceController[repository.Quotation, repository.QuotationDetail, repository.QuotationInput](reg.Quotations, nil, 50).
		RegisterRoutes(api.Group("/quotations"), api.Group("/deletions/quotations"))
	NewResourceController[repository.User, repository.User, struct{}](reg.Users, nil, 50).
		RegisterRoutes(api.Group("/users"), api.Group("/deletions/users"))

	pc := NewPermissionController(reg.Permissions, nil)
	api.GET("/permissions", pc.Catalogue)
	api.GET("/users/:id/permissions", pc.ForUser)
	api.PUT("/users/:id/permissions", pc.Update)
	api.GET("/notifications", NewNotificationController().Drain)

	return &testAPI{t: t, engine: r, backend: be}
}

// do sends a request within the API's session, starting one on first use.
func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.session != "" {
		req.Header.Set(middleware.HeaderSessionID, a.session)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	a.session = w.Header().Get(middleware.HeaderSessionID)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
