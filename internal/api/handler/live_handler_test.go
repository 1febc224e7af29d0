package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/realtime"
	"github.com/shiivaansh/sortED-sub000/internal/service"
)

// ── Mock LiveService（真实 Watch + 进程内总线）──

type mockLiveService struct {
	bus     *realtime.MemoryBus
	version atomic.Int32
}

func (m *mockLiveService) WatchProfile(ctx context.Context, userID string, onChange func(*dto.ProfileResponse), onError func(error)) (*realtime.Handle, error) {
	if userID == "missing" {
		return nil, service.ErrProfileNotFound
	}
	return realtime.Watch(ctx, m.bus, realtime.DocTopic("users", userID),
		func(context.Context) (*dto.ProfileResponse, error) {
			return &dto.ProfileResponse{UserID: userID, Version: int(m.version.Load())}, nil
		},
		onChange, onError)
}

func (m *mockLiveService) WatchClassRoster(_ context.Context, _ string, _ func(*dto.RosterSnapshot), _ func(error)) (*realtime.Handle, error) {
	return nil, service.ErrClassNotFound
}

func (m *mockLiveService) WatchClassAttendance(_ context.Context, _, _ string, _ func(*dto.ClassAttendanceSnapshot), _ func(error)) (*realtime.Handle, error) {
	return nil, service.ErrInvalidAttendanceDate
}

func newLiveServer(t *testing.T, userID string) (*httptest.Server, *mockLiveService) {
	t.Helper()
	bus := realtime.NewMemoryBus(4)
	t.Cleanup(func() { bus.Close() })

	mock := &mockLiveService{bus: bus}
	mock.version.Store(1)
	h := NewLiveHandler(mock, []string{"http://localhost:3000"}, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) { setAuthAs(c, userID, "teacher") })
	r.GET("/live/profile", h.WatchProfile)
	r.GET("/live/classes/:id/roster", h.WatchClassRoster)
	r.GET("/live/classes/:id/attendance", h.WatchClassAttendance)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mock
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) LiveFrame {
	t.Helper()
	var f LiveFrame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("读取推送失败: %v", err)
	}
	return f
}

func TestLiveHandler_WatchProfile_StreamsSnapshots(t *testing.T) {
	srv, mock := newLiveServer(t, "s1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/profile"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket 连接失败: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if f := readFrame(t, ctx, conn); f.Type != "ready" {
		t.Fatalf("期望首帧为 ready，实际 %q", f.Type)
	}

	first := readFrame(t, ctx, conn)
	if first.Type != "snapshot" {
		t.Fatalf("期望 snapshot，实际 %q", first.Type)
	}
	data, _ := first.Data.(map[string]interface{})
	if data["user_id"] != "s1" || data["version"] != float64(1) {
		t.Errorf("首个快照内容不符: %+v", first.Data)
	}

	mock.version.Store(2)
	if err := mock.bus.Publish(ctx, realtime.Change{Collection: "users", DocID: "s1", Op: "update"}); err != nil {
		t.Fatalf("发布变更失败: %v", err)
	}

	second := readFrame(t, ctx, conn)
	data, _ = second.Data.(map[string]interface{})
	if second.Type != "snapshot" || data["version"] != float64(2) {
		t.Errorf("变更后应推送最新快照，实际 %+v", second)
	}
}

func TestLiveHandler_WatchProfile_ReleasesSubscription(t *testing.T) {
	srv, mock := newLiveServer(t, "s1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/profile"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket 连接失败: %v", err)
	}
	readFrame(t, ctx, conn)
	readFrame(t, ctx, conn)

	if n := mock.bus.SubscriberCount("users/s1"); n != 1 {
		t.Fatalf("期望 1 个订阅，实际 %d", n)
	}

	conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(3 * time.Second)
	for mock.bus.SubscriberCount("users/s1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("连接关闭后订阅未释放")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLiveHandler_ErrorsBeforeUpgrade(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		path   string
		status int
	}{
		{"档案不存在", "missing", "/live/profile", http.StatusNotFound},
		{"班级不存在", "t1", "/live/classes/" + testClassID + "/roster", http.StatusNotFound},
		{"班级ID非法", "t1", "/live/classes/c9/roster", http.StatusNotFound},
		{"日期非法", "t1", "/live/classes/" + testClassID + "/attendance?date=2024-13-01", http.StatusBadRequest},
		{"缺少日期", "t1", "/live/classes/" + testClassID + "/attendance", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newLiveServer(t, tt.userID)
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("请求失败: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("期望 %d，实际 %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:3000", " https://app.school.test/ ", "", "*.school.test"})
	want := []string{"localhost:3000", "app.school.test", "*.school.test"}
	if len(got) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第 %d 项期望 %q，实际 %q", i, want[i], got[i])
		}
	}
}
