package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hajj-assistant/internal/api"
	"hajj-assistant/internal/app"
	"hajj-assistant/internal/common/camunda"
	"hajj-assistant/internal/common/config"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/testutil"
	"hajj-assistant/pkg/registry"

	ma "hajj-assistant/internal/workers/assistant/match-agency"
)

// ==========================
// Harness
// ==========================

type harness struct {
	app    *app.App
	server *httptest.Server
	redis  *miniredis.Miniredis
}

func newHarness(t testing.TB) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("OPENAI_API_KEY", "")

	mr := miniredis.RunT(t)
	db := testutil.SeedSQLite(t, testutil.SampleAgencies())

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`
database:
  driver: sqlite
  sqlite:
    path: %s
  redis:
    address: %s
reports:
  sinks: [redis, sql]
`, db.SQLite.Path, mr.Addr())
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	log := logger.NewNoOpLogger()
	a, err := app.Build(context.Background(), cfg, nil, log, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	checks := map[string]api.Pinger{"database": a.DB, "redis": a.Redis}
	handler := api.NewHandler(a.Sessions, a.Stats, a.Composer, checks, log)
	srv := httptest.NewServer(api.NewRouter(handler, log))
	t.Cleanup(srv.Close)

	return &harness{app: a, server: srv, redis: mr}
}

func (h *harness) say(t *testing.T, session, text string) pipeline.TurnResult {
	t.Helper()
	payload, _ := json.Marshal(api.TurnRequest{Text: text})
	resp, err := http.Post(h.server.URL+"/v1/sessions/"+session+"/turns", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "turn %q", text)

	var res pipeline.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

// ==========================
// Conversations over HTTP
// ==========================

func TestE2E_Probes(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(h.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	h.redis.Close()
	resp, err := http.Get(h.server.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestE2E_ArabicGreeting(t *testing.T) {
	h := newHarness(t)

	res := h.say(t, "greet-1", "السلام عليكم")
	assert.Equal(t, models.IntentChitchat, res.Intent)
	assert.Equal(t, models.LanguageArabic, res.Response.Language)
	assert.Equal(t, 1, res.State.Turn)
}

func TestE2E_VerifyAgency(t *testing.T) {
	h := newHarness(t)

	res := h.say(t, "verify-1", "Check if Royal City Travel is authorized")
	assert.Equal(t, models.IntentVerifyAgency, res.Intent)
	assert.Equal(t, pipeline.OutcomeAnswered, res.Outcome)
	assert.Contains(t, res.Response.Text, "Royal City Travel")
	assert.Equal(t, "Royal City Travel", res.State.LastAgency)
}

func TestE2E_InjectionIsRejected(t *testing.T) {
	h := newHarness(t)

	res := h.say(t, "inject-1", "Royal City'; DROP TABLE agencies; --")
	assert.Equal(t, pipeline.OutcomeInvalid, res.Outcome)
	assert.True(t, res.Response.Failed())

	stats, err := h.app.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.False(t, h.redis.Exists("session:inject-1"))
}

func TestE2E_FraudReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, text := range []string{
		"I want to report a fake agency",
		"Al Badri Tours",
		"Jeddah",
		"They took my deposit and vanished",
		"skip",
	} {
		res := h.say(t, "report-1", text)
		require.NotEqual(t, pipeline.OutcomeFailed, res.Outcome, text)
	}

	res := h.say(t, "report-1", "yes")
	require.NotEmpty(t, res.Response.ReferenceID)
	assert.True(t, res.State.IsIdle())

	entries, err := h.app.Redis.Client.XRange(ctx, "hajj:fraud-reports", "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	var city string
	require.NoError(t, h.app.Writer.DB.QueryRowContext(ctx,
		"SELECT city FROM complaints WHERE reference_id = ?", res.Response.ReferenceID).Scan(&city))
	assert.Equal(t, "Jeddah", city)
}

func TestE2E_StatsAndReset(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.server.URL + "/v1/stats?lang=ur")
	require.NoError(t, err)
	var stats api.StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, models.RegistryStats{Total: 6, Authorized: 3, Countries: 3, Cities: 6}, stats.Stats)
	assert.Equal(t, models.LanguageUrdu, stats.Summary.Language)

	h.say(t, "reset-1", "Check if Royal City Travel is authorized")
	require.True(t, h.redis.Exists("session:reset-1"))

	req, _ := http.NewRequest(http.MethodDelete, h.server.URL+"/v1/sessions/reset-1", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, h.redis.Exists("session:reset-1"))
}

// ==========================
// Zeebe (needs a running broker)
// ==========================

func TestE2E_ZeebeWorkers(t *testing.T) {
	address := os.Getenv("ZEEBE_ADDRESS")
	if address == "" {
		t.Skip("ZEEBE_ADDRESS not set")
	}
	h := newHarness(t)
	log := logger.NewTestLogger(t)

	client, err := camunda.NewClient(address)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.HealthCheck(context.Background()))

	activities, err := registry.LoadRegistry("../../configs/activity-registry.json")
	require.NoError(t, err)
	activity, err := activities.Find(ma.TaskType)
	require.NoError(t, err)

	jobs := camunda.NewJobs(ma.TaskType, camunda.DefaultRetryConfig, nil, log)
	cfg := ma.LoadConfig()
	cfg.Jobs = jobs
	handler := ma.NewHandler(cfg, h.app.Matcher, log)
	jw := camunda.StartWorker(client.GetClient(), ma.TaskType, config.WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       5000,
	}, camunda.ValidateVariables(activity, handler.Handle, jobs), log)
	require.NotNil(t, jw)
	jw.Close()
	jw.AwaitClose()
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkMatch(b *testing.B) {
	m := matcher.New(matcher.NewIndex(testutil.SampleAgencies()), matcher.DefaultConfig(), logger.NewNoOpLogger())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Match("Al Badr Hajj", matcher.MatchOptions{})
	}
}

func BenchmarkTurn(b *testing.B) {
	h := newHarness(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.app.Sessions.Turn(ctx, fmt.Sprintf("bench-%d", i), "Check if Royal City Travel is authorized", ""); err != nil {
			b.Fatal(err)
		}
	}
}
