package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pointledger/internal/infrastructure/lock"
	"pointledger/internal/model"
	"pointledger/internal/repository"
	"pointledger/internal/service"
	"pointledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewPointService(
		repository.NewUserPointTable(repository.Latency{}),
		repository.NewPointHistoryTable(repository.Latency{}),
		lock.NewKeyedMutex(),
	)
	return SetupRouter(svc, zap.NewNop())
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func decodeData(t *testing.T, resp response.Response, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestChargeUseFlow(t *testing.T) {
	r := newTestRouter()

	w, resp := do(t, r, http.MethodPatch, "/point/1/charge", `{"amount":100}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)
	var point model.UserPoint
	decodeData(t, resp, &point)
	assert.Equal(t, int64(1), point.ID)
	assert.Equal(t, int64(100), point.Point)

	w, resp = do(t, r, http.MethodPatch, "/point/1/use", `{"amount":40}`)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &point)
	assert.Equal(t, int64(60), point.Point)

	w, resp = do(t, r, http.MethodGet, "/point/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &point)
	assert.Equal(t, int64(60), point.Point)

	w, resp = do(t, r, http.MethodGet, "/point/1/histories", "")
	require.Equal(t, http.StatusOK, w.Code)
	var histories []model.PointHistory
	decodeData(t, resp, &histories)
	require.Len(t, histories, 2)
	assert.Equal(t, int64(100), histories[0].Amount)
	assert.Equal(t, int64(-40), histories[1].Amount)
	assert.Equal(t, model.TransactionTypeUse, histories[1].Type)
}

func TestEmptyHistoriesIsArray(t *testing.T) {
	r := newTestRouter()

	w, _ := do(t, r, http.MethodGet, "/point/9/histories", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestErrorMapping(t *testing.T) {
	r := newTestRouter()
	_, _ = do(t, r, http.MethodPatch, "/point/1/charge", `{"amount":30}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   int
	}{
		{"non numeric id", http.MethodGet, "/point/abc", "", http.StatusBadRequest, response.CodeParamError},
		{"non positive id", http.MethodGet, "/point/0", "", http.StatusBadRequest, response.CodeParamError},
		{"unknown user", http.MethodGet, "/point/2", "", http.StatusNotFound, response.CodeNotFound},
		{"missing body", http.MethodPatch, "/point/1/charge", `{}`, http.StatusBadRequest, response.CodeParamError},
		{"malformed body", http.MethodPatch, "/point/1/charge", `{"amount":`, http.StatusBadRequest, response.CodeParamError},
		{"negative amount", http.MethodPatch, "/point/1/use", `{"amount":-5}`, http.StatusBadRequest, response.CodeParamError},
		{"insufficient", http.MethodPatch, "/point/1/use", `{"amount":50}`, http.StatusBadRequest, response.CodeInsufficientPoints},
		{"use unknown user", http.MethodPatch, "/point/2/use", `{"amount":1}`, http.StatusNotFound, response.CodeNotFound},
		{"open existing", http.MethodPost, "/point/1", "", http.StatusConflict, response.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}

	// 失败的请求不改变余额
	_, resp := do(t, r, http.MethodGet, "/point/1", "")
	var point model.UserPoint
	decodeData(t, resp, &point)
	assert.Equal(t, int64(30), point.Point)
}

func TestOpen(t *testing.T) {
	r := newTestRouter()

	w, resp := do(t, r, http.MethodPost, "/point/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var point model.UserPoint
	decodeData(t, resp, &point)
	assert.Equal(t, int64(5), point.ID)
	assert.Zero(t, point.Point)

	w, _ = do(t, r, http.MethodGet, "/point/5", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	r := newTestRouter()

	w, _ := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w, resp := do(t, r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.CodeServerError, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodOptions, "/point/1/charge", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
