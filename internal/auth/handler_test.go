package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/pathlight-hq/pathlight/internal/auth"
	"github.com/pathlight-hq/pathlight/internal/shared"
	_ "github.com/pathlight-hq/pathlight/testing"
)

type stubRepo struct {
	user            *auth.User
	createdSessions []string
	deletedSessions []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.createdSessions = append(s.createdSessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deletedSessions = append(s.deletedSessions, id)
	return nil
}

type authStack struct {
	router   http.Handler
	sessions *shared.SessionManager
}

// commitWriter persists the session before the first byte goes out, the
// same way the application middleware does.
type commitWriter struct {
	http.ResponseWriter
	ctx       context.Context
	sessions  *shared.SessionManager
	sess      *shared.Session
	req       *http.Request
	committed bool
}

func (w *commitWriter) WriteHeader(code int) {
	if !w.committed {
		w.committed = true
		_ = w.sessions.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func newAuthStack(t *testing.T, repo auth.Repository) *authStack {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := auth.NewService(repo)
	handler := auth.NewHandler(logger, service, sessions, csrf)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &commitWriter{ResponseWriter: w, ctx: ctx, sessions: sessions, sess: sess, req: req}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
		})
	})
	r.Use(auth.PrincipalMiddleware(service, logger))
	handler.MountRoutes(r)
	return &authStack{router: r, sessions: sessions}
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{
		ID:           1,
		Email:        "staff@pathlight.test",
		Name:         "Staff Member",
		RoleName:     "program_staff",
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	stack := newAuthStack(t, repo)

	body := strings.NewReader(`{"email":"staff@pathlight.test","password":"correctpass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	stack.router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		User struct {
			ID       int64  `json:"id"`
			Email    string `json:"email"`
			RoleName string `json:"role_name"`
		} `json:"user"`
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.User.Email != "staff@pathlight.test" {
		t.Fatalf("unexpected user in response: %+v", payload.User)
	}
	if payload.User.RoleName != "program_staff" {
		t.Fatalf("expected role in response, got %q", payload.User.RoleName)
	}
	if payload.CSRFToken == "" {
		t.Fatalf("expected csrf token in login response")
	}
	if len(repo.createdSessions) != 1 {
		t.Fatalf("expected one session record, got %d", len(repo.createdSessions))
	}

	var cookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == stack.sessions.CookieName() {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected session cookie after login")
	}
	if cookie.Value != repo.createdSessions[0] {
		t.Fatalf("cookie should carry the rotated session id")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	stack := newAuthStack(t, repo)

	body := strings.NewReader(`{"email":"staff@pathlight.test","password":"wrongpass1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	stack.router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "invalid email or password") {
		t.Fatalf("expected generic credential error, got %s", res.Body.String())
	}
	if len(repo.createdSessions) != 0 {
		t.Fatalf("failed login must not register a session")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	user := activeUser(t)
	user.IsActive = false
	stack := newAuthStack(t, &stubRepo{user: user})

	body := strings.NewReader(`{"email":"staff@pathlight.test","password":"correctpass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	stack.router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive account, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	stack := newAuthStack(t, &stubRepo{})

	cases := map[string]string{
		"malformed json": `{"email":`,
		"missing email":  `{"password":"longenough"}`,
		"short password": `{"email":"a@b.test","password":"short"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			res := httptest.NewRecorder()
			stack.router.ServeHTTP(res, req)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
		})
	}
}

func TestMeAnonymous(t *testing.T) {
	stack := newAuthStack(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	res := httptest.NewRecorder()
	stack.router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Authenticated bool   `json:"authenticated"`
		CSRFToken     string `json:"csrf_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Authenticated {
		t.Fatalf("anonymous caller reported as authenticated")
	}
	if payload.CSRFToken == "" {
		t.Fatalf("anonymous /api/me must hand out a csrf token")
	}
}

func TestMeAfterLogin(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	stack := newAuthStack(t, repo)

	body := strings.NewReader(`{"email":"staff@pathlight.test","password":"correctpass"}`)
	loginReq := httptest.NewRequest(http.MethodPost, "/api/login", body)
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	stack.router.ServeHTTP(loginRes, loginReq)
	if loginRes.Code != http.StatusOK {
		t.Fatalf("login failed: %d", loginRes.Code)
	}

	meReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, c := range loginRes.Result().Cookies() {
		meReq.AddCookie(c)
	}
	meRes := httptest.NewRecorder()
	stack.router.ServeHTTP(meRes, meReq)

	if meRes.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", meRes.Code)
	}
	var payload struct {
		Authenticated bool `json:"authenticated"`
		User          struct {
			Email    string `json:"email"`
			RoleName string `json:"role_name"`
		} `json:"user"`
	}
	if err := json.NewDecoder(meRes.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Authenticated {
		t.Fatalf("expected authenticated principal after login")
	}
	if payload.User.RoleName != "program_staff" {
		t.Fatalf("principal should carry the role name, got %q", payload.User.RoleName)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	stack := newAuthStack(t, repo)

	body := strings.NewReader(`{"email":"staff@pathlight.test","password":"correctpass"}`)
	loginReq := httptest.NewRequest(http.MethodPost, "/api/login", body)
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	stack.router.ServeHTTP(loginRes, loginReq)
	if loginRes.Code != http.StatusOK {
		t.Fatalf("login failed: %d", loginRes.Code)
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	for _, c := range loginRes.Result().Cookies() {
		logoutReq.AddCookie(c)
	}
	logoutRes := httptest.NewRecorder()
	stack.router.ServeHTTP(logoutRes, logoutReq)

	if logoutRes.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", logoutRes.Code)
	}
	if len(repo.deletedSessions) != 1 {
		t.Fatalf("expected session audit row removal, got %d", len(repo.deletedSessions))
	}

	// The follow-up request is anonymous again.
	meReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, c := range logoutRes.Result().Cookies() {
		if c.MaxAge >= 0 {
			meReq.AddCookie(c)
		}
	}
	meRes := httptest.NewRecorder()
	stack.router.ServeHTTP(meRes, meReq)
	var payload struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.NewDecoder(meRes.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Authenticated {
		t.Fatalf("session should be gone after logout")
	}
}
