package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"churn-calculator/config"
	"churn-calculator/domain"
	"churn-calculator/hubspot"
	"churn-calculator/repository"
	"churn-calculator/service"
)

func TestRouter(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	router := NewRouter(newProjectionHandler(), newLeadHandler(&stubCRM{}), rl, time.Minute, zaptest.NewLogger(t))

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())

	body := `{"averageOrderValue":"100","numberOfCustomers":"1000","purchaseFrequency":"4","churnRate":"20"}`
	calc := httptest.NewRecorder()
	router.ServeHTTP(calc, httptest.NewRequest(http.MethodPost, "/churn/calculate", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusOK, calc.Code)

	limited := httptest.NewRecorder()
	router.ServeHTTP(limited, httptest.NewRequest(http.MethodPost, "/churn/calculate", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)

	// Health checks are not rate limited.
	again := httptest.NewRecorder()
	router.ServeHTTP(again, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	rl, _ := newTestLimiter(t, 5, time.Minute)
	router := NewRouter(newProjectionHandler(), newLeadHandler(&stubCRM{}), rl, 0, nil)

	for _, path := range []string{"/churn/calculate", "/leads"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", method, path)
		}
	}
}

// slowCRM answers every HubSpot call with 503 once the caller has given up,
// so each call costs the full client timeout.
func slowCRM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newLeadServer serves the router with a HubSpot client and retry policy
// built from cfg, as main does.
func newLeadServer(t *testing.T, cfg config.Config, crmURL string, writeTimeout time.Duration) *httptest.Server {
	t.Helper()
	client := hubspot.NewClient(hubspot.Config{
		AccessToken:  "token",
		APIBaseURL:   crmURL,
		FormsBaseURL: crmURL,
		Timeout:      cfg.HubSpot.Timeout,
	})
	retry := hubspot.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Retry.MaxAttempts
	retry.Backoff = hubspot.ExponentialBackoff(cfg.Retry.InitialBackoff)

	sync := service.NewLeadSyncService(client, service.SyncConfig{
		PortalID: "123",
		FormID:   "form-1",
		Retry:    retry,
	}, zaptest.NewLogger(t))
	projections := service.NewProjectionService(repository.NewMemoryCache(), nil)
	leads := NewLeadHandler(projections, sync, nil)

	rl, _ := newTestLimiter(t, 10, time.Minute)
	srv := httptest.NewUnstartedServer(NewRouter(newProjectionHandler(), leads, rl, writeTimeout, nil))
	srv.Config.WriteTimeout = writeTimeout
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func slowSyncConfig() config.Config {
	cfg := config.Defaults()
	cfg.HubSpot.Timeout = 40 * time.Millisecond
	cfg.Retry.InitialBackoff = 10 * time.Millisecond
	return cfg
}

func TestRouter_LeadResponseSurvivesSlowCRM(t *testing.T) {
	cfg := slowSyncConfig()
	srv := newLeadServer(t, cfg, slowCRM(t).URL, cfg.MinWriteTimeout())

	resp, err := http.Post(srv.URL+"/leads", "application/json", bytes.NewBufferString(leadBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lead LeadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lead))
	assert.False(t, lead.Sync.Success)
	assert.Equal(t, domain.SyncFailed, lead.Sync.State)
	assert.Equal(t, service.MessageSaveFailed, lead.Sync.Message)
}

func TestRouter_ShortWriteTimeoutLosesLeadResponse(t *testing.T) {
	cfg := slowSyncConfig()
	// Shorter than the three timed out lookups alone.
	srv := newLeadServer(t, cfg, slowCRM(t).URL, 60*time.Millisecond)

	resp, err := http.Post(srv.URL+"/leads", "application/json", bytes.NewBufferString(leadBody))
	if err == nil {
		defer resp.Body.Close()
		var lead LeadResponse
		err = json.NewDecoder(resp.Body).Decode(&lead)
	}
	assert.Error(t, err)
}
