package incentive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type recordingTrigger struct {
	runs []Run
}

func (t *recordingTrigger) TriggerRun(_ context.Context, run Run) (string, error) {
	t.runs = append(t.runs, run)
	return "task-" + string(run), nil
}

func newHandlerRouter(t *testing.T, perms ...string) (http.Handler, *fixture, *recordingTrigger) {
	t.Helper()
	f := newFixture(t, "ACME")
	trigger := &recordingTrigger{}
	mw := rbac.Middleware{Source: grantPerms(perms)}
	r := chi.NewRouter()
	r.Use(mw.Actor)
	r.Route("/api/incentives", NewHandler(nil, NewReports(f.snapshots, f.store), trigger, mw).MountRoutes)
	return r, f, trigger
}

func send(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(rbac.DefaultActorHeader, "9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerLatestSnapshot(t *testing.T) {
	h, f, _ := newHandlerRouter(t, shared.PermIncentivesView)
	f.turnover.set("ACME", "250000")
	_, err := f.scheduler(Config{}).RunWeekly(context.Background())
	require.NoError(t, err)

	rec := send(h, http.MethodGet, "/api/incentives/snapshots/ACME")
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "5000", out["incentive_amount"])
	require.Equal(t, "Silver", out["incentive_scheme"])

	rec = send(h, http.MethodGet, "/api/incentives/snapshots/GLOBEX")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerTriggerRun(t *testing.T) {
	h, _, trigger := newHandlerRouter(t, shared.PermIncentivesRun)

	rec := send(h, http.MethodPost, "/api/incentives/run/weekly")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "task-weekly")
	require.Equal(t, []Run{RunWeekly}, trigger.runs)

	rec = send(h, http.MethodPost, "/api/incentives/run/cleanup")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerTriggerRequiresRunPermission(t *testing.T) {
	h, _, trigger := newHandlerRouter(t, shared.PermIncentivesView)

	rec := send(h, http.MethodPost, "/api/incentives/run/daily")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, trigger.runs)
}
