package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/api/handler"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/jwt"
)

func setupRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "router-test-secret-key-32-chars!!",
			AccessTokenTTL: 15 * time.Minute,
			Issuer:         "sorted-test",
		},
	}
	cfg.Server.CORS.AllowOrigins = []string{"http://localhost:3000"}

	jwtMgr := jwt.NewManager(&cfg.Auth)
	// 这里只验证中间件链，请求在到达 Service 之前就被拦截
	h := handler.NewHandler(cfg, &service.Service{}, nil, zap.NewNop())
	return Setup(cfg, h, jwtMgr, nil, zap.NewNop()), jwtMgr
}

func token(t *testing.T, m *jwt.Manager, userID, role string) string {
	t.Helper()
	tok, err := m.GenerateAccessToken(userID, role, "Test", userID+"@school.test")
	if err != nil {
		t.Fatalf("签发 Token 失败: %v", err)
	}
	return tok
}

func do(r *gin.Engine, method, target, bearer string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSetup_Health(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, "GET", "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestSetup_RequiresToken(t *testing.T) {
	r, _ := setupRouter(t)

	for _, target := range []string{"/api/v1/profiles/me", "/api/v1/classes/c1", "/api/v1/live/profile"} {
		if w := do(r, "GET", target, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, w.Code)
		}
	}

	if w := do(r, "GET", "/api/v1/profiles/me", "not-a-token"); w.Code != http.StatusUnauthorized {
		t.Errorf("非法 Token 期望 401，实际 %d", w.Code)
	}
}

func TestSetup_TeacherOnlyRoutes(t *testing.T) {
	r, m := setupRouter(t)
	studentToken := token(t, m, "s1", "student")

	routes := []struct{ method, target string }{
		{"POST", "/api/v1/classes"},
		{"GET", "/api/v1/classes"},
		{"POST", "/api/v1/communities"},
		{"POST", "/api/v1/events"},
		{"POST", "/api/v1/attendance"},
		{"POST", "/api/v1/classes/c1/attendance"},
		{"GET", "/api/v1/classes/c1/attendance/export"},
		{"POST", "/api/v1/assignments"},
		{"PUT", "/api/v1/assignments/a1/submissions/s1/grade"},
		{"POST", "/api/v1/grades"},
		{"POST", "/api/v1/events/e1/certificates"},
		{"PUT", "/api/v1/profiles/s2/deactivate"},
		{"GET", "/api/v1/profiles"},
	}
	for _, rt := range routes {
		if w := do(r, rt.method, rt.target, studentToken); w.Code != http.StatusForbidden {
			t.Errorf("%s %s: 学生期望 403，实际 %d", rt.method, rt.target, w.Code)
		}
	}
}

func TestSetup_StudentOnlySubmission(t *testing.T) {
	r, m := setupRouter(t)

	w := do(r, "POST", "/api/v1/assignments/a1/submissions", token(t, m, "t1", "teacher"))

	if w.Code != http.StatusForbidden {
		t.Errorf("教师提交作业期望 403，实际 %d", w.Code)
	}
}

func TestSetup_LiveAcceptsQueryToken(t *testing.T) {
	r, m := setupRouter(t)
	studentToken := token(t, m, "s1", "student")

	// 通过认证后被 RoleAuth 拦截，说明查询参数中的 Token 生效
	w := do(r, "GET", "/api/v1/live/classes/c1/attendance?date=2024-01-20&access_token="+studentToken, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("期望 403，实际 %d", w.Code)
	}

	// 非实时接口不接受查询参数中的 Token
	w = do(r, "GET", "/api/v1/profiles?access_token="+studentToken, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}
