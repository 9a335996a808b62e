package http_api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockguard/lockguard/internal/concurrency"
	"github.com/lockguard/lockguard/internal/lockmanager"
	"github.com/lockguard/lockguard/internal/metrics"
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/internal/repository"
	"github.com/lockguard/lockguard/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCertifier struct {
	got *models.CertificationRequest
}

func (s *stubCertifier) Certify(_ context.Context, request *models.CertificationRequest) *models.CertificationResponse {
	s.got = request
	return &models.CertificationResponse{
		ResultadoOperacion:  models.ResultAccepted,
		DiagnosticoProcesar: "000",
		TipoPrestacion:      request.TipoPrestacion,
	}
}

type failingInspector struct{}

func (failingInspector) Inspect(context.Context, string) (*models.DistributedLock, error) {
	return nil, errors.New("db down")
}

type testServer struct {
	server    *HTTPServer
	certifier *stubCertifier
	manager   *lockmanager.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()
	manager := lockmanager.NewManager(repository.NewMemoryStore(), log, lockmanager.Options{})
	executor := concurrency.NewExecutor(manager, log)

	reg := metrics.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "lockguard_test_total", Help: "test"}))

	certifier := &stubCertifier{}
	return &testServer{
		server:    NewHTTPServer(certifier, executor, manager, reg, 0, log),
		certifier: certifier,
		manager:   manager,
	}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := newTestServer(t).do(http.MethodGet, "/valida", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	w := newTestServer(t).do(http.MethodOptions, "/disposicionimss/certificacion", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCertify(t *testing.T) {
	ts := newTestServer(t)
	body := `{"nss":"12345678901","curp":"GAXX010101HDFRRN09","tipoPrestacion":"TP01","origen":3,"selloTrabajador":77,"existeCertificado":true}`

	w := ts.do(http.MethodPost, "/disposicionimss/certificacion", body)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.CertificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ResultAccepted, resp.ResultadoOperacion)
	assert.Equal(t, "TP01", resp.TipoPrestacion)

	require.NotNil(t, ts.certifier.got)
	assert.Equal(t, "12345678901", ts.certifier.got.NSS)
	assert.Equal(t, "3", ts.certifier.got.Origen.String())
	require.NotNil(t, ts.certifier.got.SelloTrabajador)
	assert.EqualValues(t, 77, *ts.certifier.got.SelloTrabajador)
	require.NotNil(t, ts.certifier.got.ExisteCertificado)
	assert.True(t, *ts.certifier.got.ExisteCertificado)
}

func TestCertifyBadBody(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/disposicionimss/certificacion", `{"nss":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, ts.certifier.got)
}

func TestLockEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	w := ts.do(http.MethodGet, "/api/v1/locks/nss:1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resource":"nss:1","locked":false}`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/v1/locks/nss:1/info", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.True(t, ts.manager.Acquire(ctx, "nss:1", "P1", "payload", models.WithModifier("ops")))

	w = ts.do(http.MethodGet, "/api/v1/locks/nss:1", "")
	assert.JSONEq(t, `{"resource":"nss:1","locked":true}`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/v1/locks/nss:1/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var lock models.DistributedLock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lock))
	assert.Equal(t, "P1", lock.Owner)
	assert.Equal(t, "ops", lock.ModifierIdentity)
	assert.True(t, lock.CollisionObserved)
}

func TestLockInfoError(t *testing.T) {
	log := logger.NewNop()
	manager := lockmanager.NewManager(repository.NewMemoryStore(), log, lockmanager.Options{})
	s := NewHTTPServer(&stubCertifier{}, concurrency.NewExecutor(manager, log), failingInspector{}, nil, 0, log)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locks/R1/info", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// No gatherer, no metrics route.
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidResource(t *testing.T) {
	w := newTestServer(t).do(http.MethodGet, "/api/v1/locks/"+strings.Repeat("x", 300), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := newTestServer(t).do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lockguard_test_total")
}

func TestShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, newTestServer(t).server.Shutdown())
}
