package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/gocrm-io/gocrm-ce/internal/massaction"
	"github.com/gocrm-io/gocrm-ce/internal/middleware"
)

type fakeMassActionService struct {
	submitActor  massaction.Actor
	submitEntity string
	submitAction string
	submitParams massaction.Params
	submitIdle   bool
	submitResult *massaction.SubmitResult
	submitErr    error

	statusData *massaction.StatusData
	statusErr  error

	subscribed []string
	subErr     error
}

func (f *fakeMassActionService) Submit(_ context.Context, actor massaction.Actor, entityType, actionName string, params massaction.Params, data json.RawMessage, idle bool) (*massaction.SubmitResult, error) {
	f.submitActor = actor
	f.submitEntity = entityType
	f.submitAction = actionName
	f.submitParams = params
	f.submitIdle = idle
	return f.submitResult, f.submitErr
}

func (f *fakeMassActionService) GetStatusData(_ context.Context, _ massaction.Actor, id string) (*massaction.StatusData, error) {
	return f.statusData, f.statusErr
}

func (f *fakeMassActionService) Subscribe(_ context.Context, _ massaction.Actor, id string) error {
	f.subscribed = append(f.subscribed, id)
	return f.subErr
}

func massActionRouter(svc massActionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewMassActionHandler(svc)

	authed := func(next gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(middleware.ContextUserID, "user-1")
			c.Set(middleware.ContextUserRole, "agent")
			next(c)
		}
	}
	router.POST("/api/v1/:entityType/mass-action", authed(h.Submit))
	router.GET("/api/v1/mass-actions/:id/status", authed(h.Status))
	router.POST("/api/v1/mass-actions/:id/subscribe", authed(h.Subscribe))
	return router
}

func TestSubmitMassActionWithIDs(t *testing.T) {
	svc := &fakeMassActionService{
		submitResult: &massaction.SubmitResult{Result: &massaction.Result{Count: 2, IDs: []string{"a", "b"}}},
	}
	router := massActionRouter(svc)

	body := `{"action": "update", "ids": ["a", "b"], "data": {"status": "Closed"}}`
	req := httptest.NewRequest("POST", "/api/v1/Case/mass-action", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Case", svc.submitEntity)
	require.Equal(t, "update", svc.submitAction)
	require.Equal(t, massaction.Actor{UserID: "user-1", Role: "agent"}, svc.submitActor)
	require.Equal(t, massaction.KindIDs, svc.submitParams.Kind)
	require.Equal(t, []string{"a", "b"}, svc.submitParams.IDs)
	require.False(t, svc.submitIdle)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, float64(2), resp["count"])
}

func TestSubmitMassActionWithFilter(t *testing.T) {
	svc := &fakeMassActionService{
		submitResult: &massaction.SubmitResult{Result: &massaction.Result{Count: 5}},
	}
	router := massActionRouter(svc)

	body := `{"action": "delete", "where": {"status": "Dead"}}`
	req := httptest.NewRequest("POST", "/api/v1/Lead/mass-action", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, massaction.KindFilter, svc.submitParams.Kind)
	require.JSONEq(t, `{"status": "Dead"}`, string(svc.submitParams.Filter))
}

func TestSubmitMassActionIdleReturnsID(t *testing.T) {
	svc := &fakeMassActionService{submitResult: &massaction.SubmitResult{ID: "rec-9"}}
	router := massActionRouter(svc)

	body := `{"action": "update", "ids": ["a"], "data": {}}`
	req := httptest.NewRequest("POST", "/api/v1/Contact/mass-action?idle=true", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, svc.submitIdle)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "rec-9", resp["id"])
}

func TestSubmitMassActionForbidden(t *testing.T) {
	svc := &fakeMassActionService{submitErr: massaction.ErrForbidden}
	router := massActionRouter(svc)

	body := `{"action": "update", "ids": ["a"]}`
	req := httptest.NewRequest("POST", "/api/v1/Case/mass-action", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "Forbidden")
}

func TestSubmitMassActionRejectsMissingAction(t *testing.T) {
	router := massActionRouter(&fakeMassActionService{})

	req := httptest.NewRequest("POST", "/api/v1/Case/mass-action", strings.NewReader(`{"ids": ["a"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMassActionStatus(t *testing.T) {
	svc := &fakeMassActionService{statusData: &massaction.StatusData{Status: "Running", ProcessedCount: 3}}
	router := massActionRouter(svc)

	req := httptest.NewRequest("GET", "/api/v1/mass-actions/rec-1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status": "Running", "processedCount": 3}`, w.Body.String())
}

func TestMassActionStatusForbidden(t *testing.T) {
	svc := &fakeMassActionService{statusErr: massaction.ErrForbidden}
	router := massActionRouter(svc)

	req := httptest.NewRequest("GET", "/api/v1/mass-actions/rec-1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMassActionSubscribe(t *testing.T) {
	svc := &fakeMassActionService{}
	router := massActionRouter(svc)

	req := httptest.NewRequest("POST", "/api/v1/mass-actions/rec-2/subscribe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"rec-2"}, svc.subscribed)
}
