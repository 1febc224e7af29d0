package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/realtime"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

const liveWriteTimeout = 5 * time.Second

// LiveFrame 推送给客户端的一帧
type LiveFrame struct {
	Type  string      `json:"type"` // ready | snapshot | error
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// LiveHandler 实时订阅（websocket）处理器
//
// 每个连接对应一个 realtime.Watch；推送的是完整当前状态，客户端直接替换本地数据。
type LiveHandler struct {
	liveSvc        service.LiveService
	originPatterns []string
	logger         *zap.Logger
}

// NewLiveHandler 创建 LiveHandler，allowOrigins 取 CORS 白名单
func NewLiveHandler(liveSvc service.LiveService, allowOrigins []string, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{liveSvc: liveSvc, originPatterns: originPatterns(allowOrigins), logger: logger}
}

// WatchProfile 当前用户档案
// GET /api/v1/live/profile
func (h *LiveHandler) WatchProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	streamLive(h, c, func(ctx context.Context, onChange func(*dto.ProfileResponse), onError func(error)) (*realtime.Handle, error) {
		return h.liveSvc.WatchProfile(ctx, userID, onChange, onError)
	})
}

// WatchClassRoster 班级花名册
// GET /api/v1/live/classes/:id/roster
func (h *LiveHandler) WatchClassRoster(c *gin.Context) {
	classID, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}
	streamLive(h, c, func(ctx context.Context, onChange func(*dto.RosterSnapshot), onError func(error)) (*realtime.Handle, error) {
		return h.liveSvc.WatchClassRoster(ctx, classID, onChange, onError)
	})
}

// WatchClassAttendance 班级某日点名
// GET /api/v1/live/classes/:id/attendance?date=YYYY-MM-DD
func (h *LiveHandler) WatchClassAttendance(c *gin.Context) {
	classID, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		response.BadRequest(c, 10001, "日期不能为空")
		return
	}
	streamLive(h, c, func(ctx context.Context, onChange func(*dto.ClassAttendanceSnapshot), onError func(error)) (*realtime.Handle, error) {
		return h.liveSvc.WatchClassAttendance(ctx, classID, date, onChange, onError)
	})
}

type watchFunc[T any] func(ctx context.Context, onChange func(T), onError func(error)) (*realtime.Handle, error)

// streamLive 先建立订阅（失败时按普通 HTTP 错误返回），再升级为 websocket 推送快照
func streamLive[T any](h *LiveHandler, c *gin.Context, watch watchFunc[T]) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	frames := make(chan LiveFrame, 1)
	handle, err := watch(ctx,
		func(v T) { offerLatest(frames, LiveFrame{Type: "snapshot", Data: v}) },
		func(err error) { offerLatest(frames, LiveFrame{Type: "error", Error: err.Error()}) },
	)
	if err != nil {
		h.handleLiveError(c, err)
		return
	}
	defer handle.Unsubscribe()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug("websocket 握手失败", zap.Error(err))
		return
	}
	c.Abort()

	_ = wsjson.Write(ctx, conn, LiveFrame{Type: "ready"})

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-handle.Done():
			_ = conn.Close(websocket.StatusGoingAway, "subscription ended")
			return
		case frame := <-frames:
			writeCtx, cancelWrite := context.WithTimeout(ctx, liveWriteTimeout)
			err := wsjson.Write(writeCtx, conn, frame)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

// offerLatest 只保留最新一帧：消费方落后时丢弃旧快照
func offerLatest(ch chan LiveFrame, f LiveFrame) {
	for {
		select {
		case ch <- f:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// originPatterns 把 CORS 白名单（http://host:port）转换为 websocket 的 host 模式
func originPatterns(allowOrigins []string) []string {
	out := make([]string, 0, len(allowOrigins))
	for _, o := range allowOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

func (h *LiveHandler) handleLiveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, 11001, "档案不存在")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrInvalidAttendanceDate):
		response.BadRequest(c, 13001, "点名日期格式应为 YYYY-MM-DD")
	case errors.Is(err, realtime.ErrBusClosed):
		response.Error(c, http.StatusServiceUnavailable, 19001, "实时通道不可用")
	default:
		response.InternalError(c)
	}
}
