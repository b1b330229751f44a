package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"patronage/internal/config"
	"patronage/internal/database"
	"patronage/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
}

func testConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		JWTSecret:    "test-secret",
		JWTIssuer:    "patronage-test",
		JWTAudience:  "patronage-api",
		FeatureFlags: "monthly_ranking=on",
		RankingTopN:  10,
	}
}

func newTestEnv(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	s, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	return &testEnv{server: s, app: s.NewApp(), db: db}
}

func (e *testEnv) user(t *testing.T, username string, mutate ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{Username: username, DisplayName: username}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) post(t *testing.T, author *models.User, title string) *models.Post {
	t.Helper()
	p := &models.Post{Title: title, ImageURL: "https://img.example/" + title + ".png", UserID: author.ID}
	require.NoError(t, e.db.Omit("User").Create(p).Error)
	return p
}

func (e *testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := e.server.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request and decodes the JSON response into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	var body map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, &body))
	require.Equal(t, "up", body["status"])

	body = nil
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, &body))
	checks := body["checks"].(map[string]any)
	require.Equal(t, "healthy", checks["database"])
	require.Equal(t, "unavailable", checks["redis"])
	require.Equal(t, false, checks["amqp"])
}
