package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibepay/newebpay-bridge/internal/application/idempotency"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm/repositories"
	"go.uber.org/zap"
)

func newHealthHandler(t *testing.T) (*HealthHandler, func()) {
	t.Helper()
	db, err := gormdb.NewTestConnection()
	require.NoError(t, err)

	idem := idempotency.NewService(repositories.NewIdempotencyRepo(db), idempotency.Config{}, zap.NewNop(), nil)
	closeDB := func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())
	}
	return NewHealthHandler(db, idem, zap.NewNop()), closeDB
}

func TestHealthCheck_ReportsIdempotencyCounts(t *testing.T) {
	h, _ := newHealthHandler(t)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, h.Check(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status      string             `json:"status"`
		Database    string             `json:"database"`
		Idempotency idempotency.Health `json:"idempotency"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "up", body.Database)
	assert.Equal(t, int64(0), body.Idempotency.Live)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	h, closeDB := newHealthHandler(t)
	closeDB()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, h.Check(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DEGRADED", body["status"])
	assert.Equal(t, "down", body["database"])
}
