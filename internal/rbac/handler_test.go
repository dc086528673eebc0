package rbac

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

func newPermissionsRouter(source PermissionSource) http.Handler {
	mw := Middleware{Source: source}
	r := chi.NewRouter()
	r.Use(mw.Actor)
	r.Route("/permissions", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), source).MountRoutes)
	return r
}

func TestMyPermissionsListsActorGrants(t *testing.T) {
	router := newPermissionsRouter(stubSource{perms: map[int64][]string{
		9: {shared.PermCashierView, shared.PermCashierCollect},
	}})
	req := httptest.NewRequest(http.MethodGet, "/permissions/me", nil)
	req.Header.Set(DefaultActorHeader, "9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ActorID     int64    `json:"actor_id"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, int64(9), body.ActorID)
	require.Equal(t, []string{shared.PermCashierView, shared.PermCashierCollect}, body.Permissions)
}

func TestMyPermissionsEmptyListIsNotNull(t *testing.T) {
	router := newPermissionsRouter(stubSource{})
	req := httptest.NewRequest(http.MethodGet, "/permissions/me", nil)
	req.Header.Set(DefaultActorHeader, "3")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"permissions":[]`)
}

func TestMyPermissionsWithoutActor(t *testing.T) {
	router := newPermissionsRouter(stubSource{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/me", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
