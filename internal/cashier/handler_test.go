package cashier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

type grantPerms []string

func (g grantPerms) EffectivePermissions(context.Context, int64) ([]string, error) {
	return g, nil
}

func newTestRouter(perms ...string) (http.Handler, *memoryRepo) {
	svc, repo, _ := newTestService()
	mw := rbac.Middleware{Source: grantPerms(perms)}
	r := chi.NewRouter()
	r.Use(mw.Actor)
	r.Route("/api/cashier", NewHandler(nil, svc, mw).MountRoutes)
	return r, repo
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(rbac.DefaultActorHeader, "12")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const collectionBody = `{"customer":"Walk-in","posting_date":"2026-04-02","payment_mode":"Cash",
	"paid_from":"Debtors","paid_to":"Cash","discount":"25",
	"rows":[{"invoice":"SINV-001","received":"100"},{"invoice":"SINV-002","received":"0"}]}`

func TestHandlerCollectAndSubmit(t *testing.T) {
	h, repo := newTestRouter(shared.PermCashierCollect)

	rec := do(h, http.MethodPost, "/api/cashier/collections", collectionBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.Equal(t, "75", saved["payable_amount"])
	require.Equal(t, float64(12), saved["cashier"])

	rec = do(h, http.MethodPost, "/api/cashier/collections/1/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.posted[1], 1)

	rec = do(h, http.MethodPost, "/api/cashier/collections/1/submit", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerRejectsDuplicateInvoices(t *testing.T) {
	h, _ := newTestRouter(shared.PermCashierCollect)
	body := strings.Replace(collectionBody, "SINV-002", "SINV-001", 1)

	rec := do(h, http.MethodPost, "/api/cashier/collections", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "duplicate sales invoice")
}

func TestHandlerSummaryRequiresViewPermission(t *testing.T) {
	h, _ := newTestRouter()
	rec := do(h, http.MethodGet, "/api/cashier/summary?from_date=2026-04-01&to_date=2026-04-30", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	h, repo := newTestRouter(shared.PermCashierView)
	rec = do(h, http.MethodGet, "/api/cashier/summary?from_date=2026-04-01&to_date=2026-04-30&cashier=12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, repo.lastFilter.Cashier)

	rec = do(h, http.MethodGet, "/api/cashier/summary?from_date=April", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
