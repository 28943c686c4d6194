package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Lakshin-amin/RakshaNet/internal/guardian"
	"github.com/Lakshin-amin/RakshaNet/internal/models"
	"github.com/Lakshin-amin/RakshaNet/pkg/cache"
	"github.com/Lakshin-amin/RakshaNet/pkg/sse"
)

type nopMail struct{}

func (nopMail) SendAlertEmail(subject, body string) error { return nil }

type captureSMS struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureSMS) SendAlert(ctx context.Context, phone, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, phone)
	return nil
}

type testEnv struct {
	router *gin.Engine
	store  *models.Store
	sms    *captureSMS
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := models.NewStore(db, cache.NewGoCache(cache.LocalConfig{}))
	require.NoError(t, store.Migrate())

	sms := &captureSMS{}
	pipeline := guardian.NewPipeline(store, nopMail{}, sms, nil)
	registry := guardian.NewRegistry(pipeline, nil)
	t.Cleanup(registry.Close)
	service := guardian.NewService(registry, pipeline, store)

	router := gin.New()
	h := New(service, store, sse.NewHub(30*time.Second))
	h.RegisterRoutes(router, nil)

	return &testEnv{router: router, store: store, sms: sms}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHomeRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "RakshaNet backend running", body["status"])
	assert.NotEmpty(t, body["time_ist"])
	assert.NotEmpty(t, body["day"])
}

func TestHealthRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])
}

func TestStartTimerRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/start-timer", gin.H{"userId": "alice", "minutes": 30})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 0, body["code"])
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 30, data["duration_min"])
	assert.NotEmpty(t, data["fires_at"])
}

func TestStartTimerRouteValidation(t *testing.T) {
	env := newTestEnv(t)

	// 缺少 minutes
	w := env.do(t, http.MethodPost, "/start-timer", gin.H{"userId": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// minutes 非正数
	w = env.do(t, http.MethodPost, "/start-timer", gin.H{"userId": "alice", "minutes": -3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckInRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/start-timer", gin.H{"userId": "bob", "minutes": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/check-in", gin.H{"userId": "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 0, body["code"])

	// 签到落一条 checked_in 记录
	alerts, err := env.store.ListAlerts(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.ReasonCheckedIn, alerts[0].Reason)
}

func TestSOSRoute(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.AddContact(context.Background(), "carol", "+911234567890"))

	w := env.do(t, http.MethodPost, "/sos", gin.H{"userId": "carol", "lat": 19.076, "lng": 72.8777})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 0, body["code"])
	data := body["data"].(map[string]interface{})
	assert.Contains(t, data["location"], "maps.google.com")

	assert.Equal(t, []string{"+911234567890"}, env.sms.sent)

	alerts, err := env.store.ListAlerts(context.Background(), "carol")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.ReasonSosTriggered, alerts[0].Reason)
}

func TestSOSRouteUnpairedCoordinates(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/sos", gin.H{"userId": "carol", "lat": 19.076})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContactRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/add-contact", gin.H{"userId": "dave", "phone": "+911"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/add-contact", gin.H{"userId": "dave", "phone": "+912"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/contacts/dave", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 2, data["count"])

	w = env.do(t, http.MethodPost, "/delete-contact", gin.H{"userId": "dave", "phone": "+911"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/contacts/dave", nil)
	data = decodeBody(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["count"])
}

func TestLogsRoutes(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.InsertAlert(context.Background(), "erin", models.ReasonTimerExpired, nil, nil)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/logs/erin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].([]interface{})
	assert.Len(t, data, 1)

	// 非法日期格式
	w = env.do(t, http.MethodGet, "/logs/erin/date/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/logs/erin/date/"+models.FormatDate(models.Now()), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestStatsRoute(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.InsertAlert(context.Background(), "frank", models.ReasonSosTriggered, nil, nil)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/stats/frank", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["total_alerts"])
	assert.NotEmpty(t, data["current_day"])
}
