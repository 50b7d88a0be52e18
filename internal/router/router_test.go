package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pestid/internal/config"
	"pestid/internal/metrics"
	"pestid/internal/models"
	"pestid/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testInternalKey = "device-key"

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, utils.InitValidator())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	cfg := &config.Config{
		JWT:         config.JWTConfig{SecretKey: "test-secret", Algorithm: "HS256", ExpireMinutes: 60},
		Admin:       config.AdminConfig{Username: "admin", Password: "admin-pw"},
		Cache:       config.CacheConfig{UserTTL: 60},
		History:     config.HistoryConfig{Capacity: 100},
		Upload:      config.UploadConfig{MaxBytes: 1 << 20, MaxDimension: 256, JPEGQuality: 80},
		InternalAPI: config.InternalAPIConfig{Key: testInternalKey},
		Providers: config.ProvidersConfig{
			Ollama: config.OllamaConfig{DefaultBaseURL: "http://127.0.0.1:1", RouteTimeout: 15, ServiceTimeout: 10},
		},
	}

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	r := SetupRouter(Dependencies{
		Config:     cfg,
		JWTManager: utils.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Algorithm, cfg.JWT.GetExpireDuration()),
		Logger:     log,
		DB:         db,
		Metrics:    m,
	})
	return r, db
}

func do(r *gin.Engine, method, path, token string, payload interface{}, headers ...string) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()

	w := do(r, http.MethodPost, "/api/register", "", map[string]string{
		"username":     username,
		"password":     "secret-pw",
		"display_name": "Field Scout",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": "secret-pw",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pestid_http_requests_total{method="GET",route="/",status="200"} 1`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/api/fbdetection", "/api/verification?detectionId=x", "/api/species", "/api/analysis/votes"} {
		w := do(r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRegisterRejectsInvalidUsername(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/register", "", map[string]string{
		"username": "no spaces allowed",
		"password": "secret-pw",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username")
}

func TestDetectionVerificationFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r, "scout_01")

	w := do(r, http.MethodPost, "/api/fbdetection", token, map[string]interface{}{
		"pestType":       "Fall armyworm",
		"confidence":     87,
		"scientificName": "Spodoptera frugiperda",
		"imageLatitude":  -1.28,
		"imageLongitude": 36.82,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID     string `json:"id"`
			UserID uint   `json:"userId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)

	w = do(r, http.MethodPost, "/api/verification", token, map[string]interface{}{
		"detectionId":       created.Data.ID,
		"status":            "verified",
		"category":          "real-pest",
		"confidence":        90,
		"needsExpertReview": false,
		"canReuseForAI":     true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/verification/consistency?detectionId="+created.Data.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"consistent":true`)

	w = do(r, http.MethodGet, "/api/fbdetection/"+created.Data.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Field Scout"`)

	w = do(r, http.MethodGet, "/api/fbdetection/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(r, http.MethodGet, "/api/fbdetection/map", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(r, http.MethodGet, "/api/fbdetection/does-not-exist", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerificationRejectsMissingBooleans(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r, "scout_02")

	w := do(r, http.MethodPost, "/api/verification", token, map[string]interface{}{
		"detectionId": "abc",
		"status":      "verified",
		"category":    "real-pest",
		"confidence":  50,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidCursorIsBadRequest(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r, "scout_03")

	w := do(r, http.MethodGet, "/api/fbdetection?cursor=%21%21%21", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestRequiresInternalKey(t *testing.T) {
	r, db := newTestRouter(t)

	batch := []map[string]interface{}{
		{"pestType": "Locust", "confidence": 0.7},
		{"pestType": "Aphid", "confidence": 55},
	}

	w := do(r, http.MethodPost, "/api/fbdetection/ingest", "", batch)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/fbdetection/ingest", "", batch, "X-Internal-API-Key", testInternalKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var count int64
	require.NoError(t, db.Model(&models.Detection{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSpeciesAggregateIsAdminOnly(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r, "scout_04")

	w := do(r, http.MethodPost, "/api/species/aggregate", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "管理员"))
}

func TestCreateDetectionOwnerComesFromToken(t *testing.T) {
	r, db := newTestRouter(t)
	scout := registerAndLogin(t, r, "scout_05")
	registerAndLogin(t, r, "scout_06")

	var other models.User
	require.NoError(t, db.Where("username = ?", "scout_06").First(&other).Error)
	var self models.User
	require.NoError(t, db.Where("username = ?", "scout_05").First(&self).Error)

	w := do(r, http.MethodPost, "/api/fbdetection", scout, map[string]interface{}{
		"pestType": "Stink bug",
		"userId":   other.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.Detection
	require.NoError(t, db.Where("pest_type = ?", "Stink bug").First(&stored).Error)
	assert.Equal(t, self.ID, stored.UserID)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", self.ID).Update("is_admin", true).Error)
	w = do(r, http.MethodPost, "/api/login", "", map[string]string{"username": "scout_05", "password": "secret-pw"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = do(r, http.MethodPost, "/api/fbdetection", login.Data.AccessToken, map[string]interface{}{
		"pestType": "Leafhopper",
		"userId":   other.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, db.Where("pest_type = ?", "Leafhopper").First(&stored).Error)
	assert.Equal(t, other.ID, stored.UserID)
}

func TestCreateDetectionDuplicateIDIsConflict(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r, "scout_07")

	payload := map[string]interface{}{"id": "field-cam-42", "pestType": "Thrips"}
	w := do(r, http.MethodPost, "/api/fbdetection", token, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/fbdetection", token, payload)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotContains(t, w.Body.String(), "UNIQUE")
}
