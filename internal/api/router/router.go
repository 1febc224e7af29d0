package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/api/handler"
	"github.com/shiivaansh/sortED-sub000/internal/api/middleware"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/pkg/jwt"
	"github.com/shiivaansh/sortED-sub000/pkg/redis"
)

const (
	maxBodyBytes   = 1 << 20
	insightLimit   = 20
	insightWindow  = time.Minute
	attendanceRate = 120
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	teacherOnly := middleware.RoleAuth(model.RoleTeacher)
	studentOnly := middleware.RoleAuth(model.RoleStudent)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		authorized.POST("/auth/logout", h.Auth.Logout)

		// 档案模块
		profiles := authorized.Group("/profiles")
		{
			profiles.POST("/me", h.Profile.EnsureProfile)
			profiles.GET("/me", h.Profile.GetMyProfile)
			profiles.GET("", teacherOnly, h.Profile.ListProfiles)
			profiles.GET("/:id", h.Profile.GetProfile) // 教师或本人（Handler 层鉴权）
			profiles.PUT("/:id/deactivate", teacherOnly, h.Profile.Deactivate)
			profiles.GET("/:id/certificates", h.Membership.ListCertificates) // 教师或本人
		}

		// 班级 / 花名册模块
		classes := authorized.Group("/classes")
		{
			classes.POST("", teacherOnly, h.Class.CreateClass)
			classes.GET("", teacherOnly, h.Class.ListMyClasses)
			classes.GET("/:id", h.Class.GetClass)
			classes.POST("/:id/enrollment/refresh", teacherOnly, h.Class.RefreshEnrollment)
			classes.POST("/:id/attendance", teacherOnly, h.Attendance.MarkClassAttendance)
			classes.GET("/:id/attendance/export", teacherOnly, h.Export.ExportClassAttendance)
			classes.GET("/:id/schedule.ics", h.Export.ExportClassSchedule)
			classes.GET("/:id/assignments", h.Assignment.ListClassAssignments)
		}

		// 点名模块
		authorized.POST("/attendance", teacherOnly,
			middleware.RateLimit(rdb, attendanceRate, time.Minute), h.Attendance.MarkAttendance)
		authorized.GET("/students/:id/attendance", h.Attendance.ListStudentAttendance)
		authorized.GET("/students/:id/attendance/log", h.Attendance.ListAttendanceLog)
		authorized.GET("/students/:id/grades", h.Grade.ListStudentGrades)

		// 作业模块
		assignments := authorized.Group("/assignments")
		{
			assignments.POST("", teacherOnly, h.Assignment.CreateAssignment)
			assignments.GET("/:id", h.Assignment.GetAssignment)
			assignments.POST("/:id/submissions", studentOnly, h.Assignment.SubmitAssignment)
			assignments.PUT("/:id/submissions/:studentId/grade", teacherOnly, h.Assignment.GradeSubmission)
			assignments.POST("/:id/stats/refresh", teacherOnly, h.Assignment.RefreshStats)
		}

		// 成绩模块
		authorized.POST("/grades", teacherOnly, h.Grade.RecordGrade)

		// 社团 / 活动模块
		communities := authorized.Group("/communities")
		{
			communities.POST("", teacherOnly, h.Membership.CreateCommunity)
			communities.POST("/:id/members", h.Membership.JoinCommunity)
			communities.DELETE("/:id/members", h.Membership.LeaveCommunity)
		}
		events := authorized.Group("/events")
		{
			events.POST("", teacherOnly, h.Membership.CreateEvent)
			events.POST("/:id/registrations", h.Membership.RegisterEvent)
			events.DELETE("/:id/registrations", h.Membership.UnregisterEvent)
			events.POST("/:id/certificates", teacherOnly, h.Membership.IssueCertificate)
		}

		// AI 洞察（外部调用，按 IP 限流）
		insights := authorized.Group("/insights")
		insights.Use(middleware.RateLimit(rdb, insightLimit, insightWindow))
		{
			insights.POST("/predict-gpa", h.Insight.PredictGPA)
			insights.POST("/study-assistant", h.Insight.StudyAssistant)
		}

		// 实时订阅（websocket）
		live := authorized.Group("/live")
		{
			live.GET("/profile", h.Live.WatchProfile)
			live.GET("/classes/:id/roster", h.Live.WatchClassRoster)
			live.GET("/classes/:id/attendance", teacherOnly, h.Live.WatchClassAttendance)
		}
	}

	return r
}
