package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sitekeep/adminauth/internal/controller"
	"github.com/sitekeep/adminauth/internal/middleware"
	"github.com/sitekeep/adminauth/internal/repository"
	"github.com/sitekeep/adminauth/internal/service"
	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
)

const cookieName = "adminauth-session"

// bcrypt hash of "test"
const passwordHash = "$2a$10$ne6z693sTgzT3ePoQ05PgOecUHnBjM7sSNj6M.l5CLUP.f6NyCnt."

type testApp struct {
	router   *gin.Engine
	sessions *service.SessionService
	lockouts *service.LockoutService
	local    *service.LocalProvider
}

func setupAuthController(t *testing.T, production bool) *testApp {
	return setupAuthControllerWithClock(t, production, nil)
}

func setupAuthControllerWithClock(t *testing.T, production bool, clock func() time.Time) *testApp {
	tlog.NewSimpleLogger().Init()

	// Setup
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/api")

	// Services
	policy := service.NewPolicyService()
	sessions := service.NewSessionService(service.SessionServiceConfig{Clock: clock}, policy)

	repo := repository.NewFileRepository(repository.FileRepositoryConfig{
		Path: filepath.Join(t.TempDir(), "lockouts.json"),
	})
	lockouts := service.NewLockoutService(service.LockoutServiceConfig{Clock: clock}, repo, policy)

	local := service.NewLocalProvider(service.LocalProviderConfig{
		Username:     "admin",
		PasswordHash: passwordHash,
		Secret:       "secret",
		CookieName:   cookieName,
	}, sessions)

	auth := service.NewAuthService(service.AuthServiceConfig{Production: production}, local)

	// Middleware
	gate := middleware.NewAuthMiddleware(middleware.AuthMiddlewareConfig{
		CookieName: cookieName,
	}, auth, policy).Middleware()

	protected := group.Group("", gate)

	// Controllers
	controller.NewAuthController(controller.AuthControllerConfig{
		CookieName: cookieName,
	}, group, gate, local, sessions, lockouts).SetupRoutes()

	controller.NewSettingsController(controller.SettingsControllerConfig{
		Production: production,
	}, protected, sessions).SetupRoutes()

	controller.NewLockoutController(protected, lockouts).SetupRoutes()

	return &testApp{
		router:   router,
		sessions: sessions,
		lockouts: lockouts,
		local:    local,
	}
}

func (app *testApp) login(t *testing.T, username string, password string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(controller.LoginRequest{
		Username: username,
		Password: password,
	})
	assert.NilError(t, err)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(string(body)))
	app.router.ServeHTTP(recorder, req)

	return recorder
}

func (app *testApp) request(method string, path string, body string, token string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))

	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}

	app.router.ServeHTTP(recorder, req)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestLoginHandler(t *testing.T) {
	app := setupAuthController(t, true)

	// Successful login
	recorder := app.login(t, "admin", "test")
	assert.Equal(t, 200, recorder.Code)

	cookie := recorder.Result().Cookies()[0]
	expected, err := utils.DeriveToken("admin", passwordHash, "secret")
	assert.NilError(t, err)

	assert.Equal(t, cookieName, cookie.Name)
	assert.Equal(t, expected, cookie.Value)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.Assert(t, cookie.HttpOnly)
	assert.Assert(t, app.sessions.IsValidSession(expected))

	// Invalid password
	recorder = app.login(t, "admin", "invalid")
	assert.Equal(t, 401, recorder.Code)

	body := decode(t, recorder)
	assert.Equal(t, false, body["locked"])
	assert.Equal(t, float64(4), body["remainingAttempts"])

	// Invalid json
	recorder = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader("{invalid json}"))
	app.router.ServeHTTP(recorder, req)
	assert.Equal(t, 400, recorder.Code)

	// Missing fields
	recorder = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"username":"admin"}`))
	app.router.ServeHTTP(recorder, req)
	assert.Equal(t, 400, recorder.Code)
}

func TestLoginLockout(t *testing.T) {
	app := setupAuthController(t, true)

	for i := 1; i <= 4; i++ {
		recorder := app.login(t, "admin", "invalid")
		assert.Equal(t, 401, recorder.Code)
		assert.Equal(t, float64(5-i), decode(t, recorder)["remainingAttempts"])
	}

	// The fifth failure locks
	recorder := app.login(t, "admin", "invalid")
	assert.Equal(t, 401, recorder.Code)

	body := decode(t, recorder)
	assert.Equal(t, true, body["locked"])
	assert.Equal(t, float64(0), body["remainingAttempts"])

	// Even the right password is refused now
	recorder = app.login(t, "admin", "test")
	assert.Equal(t, 429, recorder.Code)
	assert.Equal(t, "true", recorder.Header().Get("x-adminauth-lock-locked"))
	assert.Assert(t, recorder.Header().Get("x-adminauth-lock-reset") != "")
	assert.Equal(t, 0, len(recorder.Result().Cookies()))

	remaining := decode(t, recorder)["remainingLockTime"].(float64)
	assert.Assert(t, remaining > 0 && remaining <= 900)
}

func TestLoginLockoutResetHeader(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	app := setupAuthControllerWithClock(t, true, func() time.Time { return now })

	for range 5 {
		app.login(t, "admin", "invalid")
	}

	// The header and the body agree with the injected clock
	recorder := app.login(t, "admin", "test")
	assert.Equal(t, 429, recorder.Code)
	assert.Equal(t, "2025-03-14T09:15:00Z", recorder.Header().Get("x-adminauth-lock-reset"))
	assert.Equal(t, float64(900), decode(t, recorder)["remainingLockTime"])
}

func TestLoginLockoutByIP(t *testing.T) {
	app := setupAuthController(t, true)

	// Spread failures over usernames from one address
	for _, username := range []string{"root", "ADMIN", "editor", "guest", "admin"} {
		recorder := app.login(t, username, "invalid")
		assert.Equal(t, 401, recorder.Code)
	}

	// No single username reached the limit but the IP did
	assert.Assert(t, !app.sessions.IsAccountLocked("editor"))

	recorder := app.login(t, "admin", "test")
	assert.Equal(t, 429, recorder.Code)

	// The audit list is lowercase and deduplicated
	set, err := app.lockouts.List(t.Context())
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"root", "admin", "editor", "guest"}, set["192.0.2.1"].FailedUsernames)
}

func TestLoginClearsAttempts(t *testing.T) {
	app := setupAuthController(t, true)

	for range 3 {
		app.login(t, "admin", "invalid")
	}

	recorder := app.login(t, "admin", "test")
	assert.Equal(t, 200, recorder.Code)

	// Both counters start over
	recorder = app.login(t, "admin", "invalid")
	assert.Equal(t, float64(4), decode(t, recorder)["remainingAttempts"])
}

func TestLogoutHandler(t *testing.T) {
	app := setupAuthController(t, true)

	token := app.login(t, "admin", "test").Result().Cookies()[0].Value

	recorder := app.request("POST", "/api/auth/logout", "", token)
	assert.Equal(t, 200, recorder.Code)

	cookie := recorder.Result().Cookies()[0]

	assert.Equal(t, cookieName, cookie.Name)
	assert.Equal(t, "", cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Equal(t, 0, app.sessions.Count())
}

func TestAttemptsHandler(t *testing.T) {
	app := setupAuthController(t, true)

	recorder := app.request("GET", "/api/auth/attempts", "", "")
	assert.Equal(t, 200, recorder.Code)

	body := decode(t, recorder)
	assert.Equal(t, false, body["locked"])
	assert.Equal(t, float64(5), body["remainingAttempts"])
	assert.Equal(t, float64(0), body["remainingLockTime"])

	app.login(t, "admin", "invalid")
	app.login(t, "admin", "invalid")

	body = decode(t, app.request("GET", "/api/auth/attempts?username=admin", "", ""))
	assert.Equal(t, float64(3), body["remainingAttempts"])

	for range 3 {
		app.login(t, "admin", "invalid")
	}

	body = decode(t, app.request("GET", "/api/auth/attempts?username=admin", "", ""))
	assert.Equal(t, true, body["locked"])
	assert.Equal(t, float64(0), body["remainingAttempts"])
	assert.Assert(t, body["remainingLockTime"].(float64) > 0)
}

func TestMeHandler(t *testing.T) {
	app := setupAuthController(t, true)

	// Uniform denial
	unauthorized, err := json.Marshal(map[string]any{
		"message": "Unauthorized",
		"status":  401,
	})
	assert.NilError(t, err)

	recorder := app.request("GET", "/api/auth/me", "", "")
	assert.Equal(t, 401, recorder.Code)
	assert.Equal(t, string(unauthorized), recorder.Body.String())

	recorder = app.request("GET", "/api/auth/me", "", "forged")
	assert.Equal(t, 401, recorder.Code)
	assert.Equal(t, string(unauthorized), recorder.Body.String())

	// Authenticated
	token := app.login(t, "admin", "test").Result().Cookies()[0].Value

	recorder = app.request("GET", "/api/auth/me", "", token)
	assert.Equal(t, 200, recorder.Code)

	body := decode(t, recorder)
	assert.Equal(t, "admin", body["username"])
	assert.Equal(t, "local", body["provider"])

	// The cookie slides with the session
	cookie := recorder.Result().Cookies()[0]
	assert.Equal(t, token, cookie.Value)
	assert.Equal(t, 3600, cookie.MaxAge)
}

func TestMeHandlerDevBypass(t *testing.T) {
	tlog.NewSimpleLogger().Init()
	gin.SetMode(gin.TestMode)

	policy := service.NewPolicyService()
	sessions := service.NewSessionService(service.SessionServiceConfig{}, policy)
	auth := service.NewAuthService(service.AuthServiceConfig{DevBypass: true}, nil)

	router := gin.New()
	gate := middleware.NewAuthMiddleware(middleware.AuthMiddlewareConfig{CookieName: cookieName}, auth, policy).Middleware()
	controller.NewAuthController(controller.AuthControllerConfig{CookieName: cookieName}, router.Group("/api"), gate, nil, sessions, nil).SetupRoutes()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/auth/me", nil))

	assert.Equal(t, 200, recorder.Code)
	assert.Equal(t, "dev", decode(t, recorder)["provider"])
}
