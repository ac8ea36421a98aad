package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/allgood/internal/auth"
	"github.com/sujalbistaa/allgood/internal/cache"
	"github.com/sujalbistaa/allgood/internal/config"
	"github.com/sujalbistaa/allgood/internal/db"
	"github.com/sujalbistaa/allgood/internal/geo"
	"github.com/sujalbistaa/allgood/internal/geocode"
	"github.com/sujalbistaa/allgood/internal/metrics"
	"github.com/sujalbistaa/allgood/internal/models"
	"github.com/sujalbistaa/allgood/internal/service"
	"github.com/sujalbistaa/allgood/internal/store"
	"github.com/sujalbistaa/allgood/internal/ws"
)

type moderatorFunc func(text string) bool

func (f moderatorFunc) CheckText(_ context.Context, text string) (bool, error) {
	return f(text), nil
}

func allowAll(string) bool { return true }

func newTestRouter(t *testing.T, mod moderatorFunc, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	gdb, err := db.Init(config.DatabaseConfig{URL: "sqlite://:memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	hub := ws.NewHub(log)
	users := ws.NewUserFeed()
	issuer := auth.NewIssuer("test-secret-0123456789", time.Hour)
	svc := service.New(service.Deps{
		Store:     store.New(gdb, store.NewIDGenerator(1)),
		Moderator: mod,
		Geocoder:  geocode.Disabled{},
		Events:    ws.NewNotifier(hub, users, log),
		Tokens:    issuer,
		Log:       log,
	}, service.Options{FuzzRadiusMeters: 5000, DailyLimit: true})

	env := &Env{
		Svc:    svc,
		Tokens: issuer,
		Hub:    hub,
		Users:  users,
		Cache:  cache.New(true, 1, 60, log),
		Log:    log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := gin.New()
	SetupRoutes(ctx, router, env, opts)
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signIn(t *testing.T, router http.Handler) (string, models.User) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/auth/anonymous", nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	return resp.Token, *resp.User
}

func postBody(typ, description string) gin.H {
	return gin.H{
		"type":        typ,
		"location":    geo.Point{Latitude: 47.6062, Longitude: -122.3321},
		"description": description,
	}
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestSessionAndMe(t *testing.T) {
	router := newTestRouter(t, allowAll, Options{})
	token, user := signIn(t, router)
	assert.True(t, user.IsAnonymous)

	w := do(t, router, http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, user.ID, me.ID)

	w = do(t, router, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, router, http.MethodGet, "/api/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecordOpenAndEligibility(t *testing.T) {
	router := newTestRouter(t, allowAll, Options{})
	token, _ := signIn(t, router)

	w := do(t, router, http.MethodPost, "/api/me/open?tz=Europe/Paris", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, 1, me.StreakApp)
	assert.Equal(t, 1, me.StreakAppBest)

	w = do(t, router, http.MethodGet, "/api/me/eligibility", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"canPost":true}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/me/eligibility?tz=Not/AZone", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePostFlow(t *testing.T) {
	router := newTestRouter(t, allowAll, Options{PostRate: rate.Inf})
	token, user := signIn(t, router)

	// warm the feed cache so creation has something to invalidate
	w := do(t, router, http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/posts", postBody("volunteering", "served soup at the food bank"), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, user.ID, post.UserID)
	assert.Equal(t, models.AnonymousName, post.UserName)
	assert.Equal(t, models.PostVolunteering, post.Type)

	w = do(t, router, http.MethodPost, "/api/posts", postBody("donation", "second one today"), token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var feed []models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, post.ID, feed[0].ID)

	w = do(t, router, http.MethodGet, "/api/posts?date=pastDay&type=donation", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/posts?date=someday", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/posts/"+post.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/posts/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/users/"+user.ID+"/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = do(t, router, http.MethodGet, "/api/locations", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var locs []models.PostLocation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &locs))
	require.Len(t, locs, 1)
	assert.Equal(t, post.Location, locs[0].Location)

	w = do(t, router, http.MethodGet, "/api/me", nil, token)
	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, 1, me.StreakPost)
}

func TestCreatePost_Errors(t *testing.T) {
	router := newTestRouter(t, func(text string) bool { return text != "something rude" }, Options{PostRate: rate.Inf})
	token, _ := signIn(t, router)

	w := do(t, router, http.MethodPost, "/api/posts", postBody("donation", "something rude"), token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, http.MethodPost, "/api/posts", postBody("gift", "gave a gift"), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "unknown post type")

	w = do(t, router, http.MethodPost, "/api/posts", gin.H{"type": "donation", "description": "no location"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/posts", postBody("donation", "no session"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/api/posts", nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCreatePost_RateLimited(t *testing.T) {
	router := newTestRouter(t, allowAll, Options{})
	token, _ := signIn(t, router)

	w := do(t, router, http.MethodPost, "/api/posts", postBody("kindness", "held the door"), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/posts", postBody("kindness", "held it again"), token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestProfileSetup(t *testing.T) {
	router := newTestRouter(t, func(text string) bool { return text != "badname" }, Options{})
	token, _ := signIn(t, router)

	w := do(t, router, http.MethodPut, "/api/me/profile", gin.H{"username": "badname", "avatarNumber": 2}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, http.MethodPut, "/api/me/profile", gin.H{"username": "helper", "avatarNumber": 8}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/api/me/profile", gin.H{"username": "helper", "avatarNumber": 2}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.NotNil(t, me.Username)
	assert.Equal(t, "helper", *me.Username)
	assert.False(t, me.IsAnonymous)

	w = do(t, router, http.MethodPut, "/api/me/profile", gin.H{"username": "other", "avatarNumber": 3}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPatch, "/api/me/avatar", gin.H{"avatarNumber": 5}, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, 5, me.AvatarNumber)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, allowAll, Options{AdminToken: "s3cret", Metrics: metrics.New(true)})

	w := do(t, router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = do(t, router, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `allgood_requests_total{route="/health",status="2xx"} 1`)
}

func TestUserWs_RequiresToken(t *testing.T) {
	router := newTestRouter(t, allowAll, Options{})
	w := do(t, router, http.MethodGet, "/ws/me?token=garbage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
