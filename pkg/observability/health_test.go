package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestHealthChecker_NoDependencies(t *testing.T) {
	checker := NewHealthChecker(nil, nil)
	status := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Empty(t, status.Dependencies)
	assert.Empty(t, checker.Names())
}

func TestHealthChecker_CriticalCheck(t *testing.T) {
	checker := NewHealthChecker(nil, nil)
	checker.SetVersion("1.2.3")

	loaded := false
	checker.AddCheck("catalog", true, func(ctx context.Context) error {
		if !loaded {
			return errors.New("catalog not loaded")
		}
		return nil
	})

	status := checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, "catalog not loaded", status.Dependencies["catalog"].Message)

	loaded = true
	status = checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
}

func TestHealthChecker_RedisDownDegrades(t *testing.T) {
	mr, client := setupRedis(t)
	checker := NewHealthChecker(nil, client)
	checker.AddCheck("catalog", true, func(context.Context) error { return nil })

	assert.Equal(t, StatusHealthy, checker.Check(context.Background()).Status)

	mr.Close()
	status := checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["catalog"].Status)
}

func TestHealthChecker_Database(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	checker := NewHealthChecker(db, nil)
	assert.Equal(t, []string{"database"}, checker.Names())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	status := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	status = checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, "connection refused", status.Dependencies["database"].Message)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthRoutes(t *testing.T) {
	checker := NewHealthChecker(nil, nil)
	ready := false
	checker.AddCheck("catalog", true, func(context.Context) error {
		if !ready {
			return errors.New("not loaded")
		}
		return nil
	})

	router := mux.NewRouter()
	RegisterHealthRoutes(router, checker)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/health/ready").Code)

	ready = true
	rec := get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Contains(t, status.Dependencies, "catalog")
}
