package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/realtime"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	pkgerrors "github.com/shiivaansh/sortED-sub000/pkg/errors"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock ProfileService ──

type mockProfileService struct {
	ensureResult *dto.EnsureProfileResponse
	ensureErr    error
	gotIdentity  service.Identity
	getResult    *dto.ProfileResponse
	getErr       error
	listResult   []dto.ProfileResponse
	listTotal    int64
	listErr      error
	gotListReq   *dto.ProfileListRequest
	deactErr     error
}

func (m *mockProfileService) EnsureProfile(_ context.Context, ident service.Identity, _ *dto.EnsureProfileRequest) (*dto.EnsureProfileResponse, error) {
	m.gotIdentity = ident
	return m.ensureResult, m.ensureErr
}
func (m *mockProfileService) GetProfile(_ context.Context, _ string) (*dto.ProfileResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockProfileService) ListProfiles(_ context.Context, req *dto.ProfileListRequest) ([]dto.ProfileResponse, int64, error) {
	m.gotListReq = req
	return m.listResult, m.listTotal, m.listErr
}
func (m *mockProfileService) Deactivate(_ context.Context, _, _ string) error {
	return m.deactErr
}

// ── Mock RosterService ──

type mockRosterService struct {
	createResult  *dto.CreateClassResponse
	createErr     error
	getResult     *dto.ClassResponse
	getErr        error
	refreshResult *dto.EnrollmentResult
	refreshErr    error
	listResult    []dto.ClassResponse
}

func (m *mockRosterService) CreateClass(_ context.Context, _ string, _ *dto.CreateClassRequest) (*dto.CreateClassResponse, error) {
	return m.createResult, m.createErr
}
func (m *mockRosterService) GetClass(_ context.Context, _ string) (*dto.ClassResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockRosterService) ListTeacherClasses(_ context.Context, _ string) ([]dto.ClassResponse, error) {
	return m.listResult, nil
}
func (m *mockRosterService) AutoEnroll(_ context.Context, _ string) (*dto.EnrollmentResult, error) {
	return m.refreshResult, m.refreshErr
}
func (m *mockRosterService) RefreshEnrollment(_ context.Context, _, _ string) (*dto.EnrollmentResult, error) {
	return m.refreshResult, m.refreshErr
}
func (m *mockRosterService) EnrollStudent(_ context.Context, _ string) (*dto.EnrollmentResult, error) {
	return nil, nil
}
func (m *mockRosterService) ResyncAll(_ context.Context) (int, error) {
	return 0, nil
}

// ── Mock AttendanceService ──

type mockAttendanceService struct {
	markCalled  bool
	markResult  *dto.MarkAttendanceResponse
	markErr     error
	classResult *dto.MarkClassAttendanceResponse
	classErr    error
	listResult  *dto.StudentAttendanceResponse
	listErr     error
	logResult   []dto.AttendanceEntryResponse
}

func (m *mockAttendanceService) MarkAttendance(_ context.Context, _ string, _ *dto.MarkAttendanceRequest) (*dto.MarkAttendanceResponse, error) {
	m.markCalled = true
	return m.markResult, m.markErr
}
func (m *mockAttendanceService) MarkClassAttendance(_ context.Context, _, _ string, _ *dto.MarkClassAttendanceRequest) (*dto.MarkClassAttendanceResponse, error) {
	return m.classResult, m.classErr
}
func (m *mockAttendanceService) ListStudentAttendance(_ context.Context, _ string) (*dto.StudentAttendanceResponse, error) {
	return m.listResult, m.listErr
}
func (m *mockAttendanceService) ListAttendanceLog(_ context.Context, _ string) ([]dto.AttendanceEntryResponse, error) {
	return m.logResult, m.listErr
}
func (m *mockAttendanceService) ClassAttendanceSnapshot(_ context.Context, _, _ string) (*dto.ClassAttendanceSnapshot, error) {
	return nil, nil
}

// ── Mock AssignmentService ──

type mockAssignmentService struct {
	createResult *dto.AssignmentResponse
	createErr    error
	submitResult *dto.SubmitAssignmentResponse
	submitErr    error
	gotStudentID string
	gradeResult  *dto.GradeSubmissionResponse
	gradeErr     error
	listResult   []dto.AssignmentResponse
	listErr      error
}

func (m *mockAssignmentService) CreateAssignment(_ context.Context, _ string, _ *dto.CreateAssignmentRequest) (*dto.AssignmentResponse, error) {
	return m.createResult, m.createErr
}
func (m *mockAssignmentService) GetAssignment(_ context.Context, _ string) (*dto.AssignmentResponse, error) {
	return m.createResult, m.createErr
}
func (m *mockAssignmentService) SubmitAssignment(_ context.Context, _, studentID string, _ *dto.SubmitAssignmentRequest) (*dto.SubmitAssignmentResponse, error) {
	m.gotStudentID = studentID
	return m.submitResult, m.submitErr
}
func (m *mockAssignmentService) GradeSubmission(_ context.Context, _, _, _ string, _ *dto.GradeSubmissionRequest) (*dto.GradeSubmissionResponse, error) {
	return m.gradeResult, m.gradeErr
}
func (m *mockAssignmentService) ListClassAssignments(_ context.Context, _, _ string) ([]dto.AssignmentResponse, error) {
	return m.listResult, m.listErr
}
func (m *mockAssignmentService) RefreshStats(_ context.Context, _, _ string) (*dto.AssignmentResponse, error) {
	return m.createResult, m.createErr
}

// ── Mock GradeService ──

type mockGradeService struct {
	called bool
	result *dto.RecordGradeResponse
	err    error
	list   *dto.StudentGradesResponse
}

func (m *mockGradeService) RecordGrade(_ context.Context, _ string, _ *dto.RecordGradeRequest) (*dto.RecordGradeResponse, error) {
	m.called = true
	return m.result, m.err
}

func (m *mockGradeService) ListStudentGrades(_ context.Context, _ string) (*dto.StudentGradesResponse, error) {
	return m.list, m.err
}

// ── Mock MembershipService ──

type mockMembershipService struct {
	result    *dto.MembershipResponse
	err       error
	cert      *dto.CertificateResponse
	community *dto.CommunityResponse
	event     *dto.EventResponse
	certs     []dto.CertificateResponse
}

func (m *mockMembershipService) CreateCommunity(_ context.Context, _ string, _ *dto.CreateCommunityRequest) (*dto.CommunityResponse, error) {
	return m.community, m.err
}
func (m *mockMembershipService) CreateEvent(_ context.Context, _ string, _ *dto.CreateEventRequest) (*dto.EventResponse, error) {
	return m.event, m.err
}
func (m *mockMembershipService) ListCertificates(_ context.Context, _ string) ([]dto.CertificateResponse, error) {
	return m.certs, m.err
}

func (m *mockMembershipService) JoinCommunity(_ context.Context, _, _ string) (*dto.MembershipResponse, error) {
	return m.result, m.err
}
func (m *mockMembershipService) LeaveCommunity(_ context.Context, _, _ string) (*dto.MembershipResponse, error) {
	return m.result, m.err
}
func (m *mockMembershipService) RegisterEvent(_ context.Context, _, _ string) (*dto.MembershipResponse, error) {
	return m.result, m.err
}
func (m *mockMembershipService) UnregisterEvent(_ context.Context, _, _ string) (*dto.MembershipResponse, error) {
	return m.result, m.err
}
func (m *mockMembershipService) IssueCertificate(_ context.Context, _ string, _ *dto.IssueCertificateRequest) (*dto.CertificateResponse, error) {
	return m.cert, m.err
}
func (m *mockMembershipService) ReconcileCounters(_ context.Context) (*dto.ReconcileResult, error) {
	return &dto.ReconcileResult{}, nil
}

// ── Mock InsightService ──

type mockInsightService struct {
	gotStudentID string
	predict      *dto.PredictGPAResponse
	err          error
}

func (m *mockInsightService) PredictGPA(_ context.Context, studentID string) (*dto.PredictGPAResponse, error) {
	m.gotStudentID = studentID
	return m.predict, m.err
}
func (m *mockInsightService) StudyAssistant(_ context.Context, _ string, _ *dto.StudyAssistantRequest) (*dto.StudyAssistantResponse, error) {
	return &dto.StudyAssistantResponse{Answer: "ok", Fallback: true}, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportClassAttendance(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

func (m *mockExportService) ExportClassSchedule(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	jti string
	ttl time.Duration
	err error
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.jti, m.ttl = jti, ttl
	return m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuthAs(c *gin.Context, userID, role string) {
	c.Set("user_id", userID)
	c.Set("role", role)
	c.Set("name", "Test "+userID)
	c.Set("email", userID+"@school.test")
	c.Set("jti", "test-jti")
	c.Set("token_exp", time.Now().Add(15*time.Minute))
}

// serve 注册单条路由并以指定身份发出请求
func serve(method, route, target string, body io.Reader, userID, role string, h gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if userID != "" {
			setAuthAs(c, userID, role)
		}
		h(c)
	})
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Errorf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	if resp := parseResponse(w); resp.Code != code {
		t.Errorf("expected error code %d, got %d", code, resp.Code)
	}
}

func floatPtr(v float64) *float64 { return &v }

// 路径 ID 均为 uuid
const (
	testClassID      = "0b6c5f3e-8d2a-4c1e-9f7b-2a4d6e8c0b13"
	testAssignmentID = "5e1d9a7c-3f4b-4e2a-8c6d-7b9e1f3a5c24"
	testCommunityID  = "9a3f7c1e-5b2d-4f8a-a6c4-3e5b7d9f1a35"
	testEventID      = "c4e8b2a6-7d1f-4a3c-b5e9-8f2a4c6e0d46"
)

// ═══════════════════════════════════════════════════════════
// ProfileHandler Tests
// ═══════════════════════════════════════════════════════════

func TestProfileHandler_EnsureProfile_Created(t *testing.T) {
	mock := &mockProfileService{ensureResult: &dto.EnsureProfileResponse{Created: true}}
	h := NewProfileHandler(mock)

	w := serve("POST", "/profiles/me", "/profiles/me", nil, "s1", "student", h.EnsureProfile)

	expectStatus(t, w, http.StatusCreated, 0)
	if mock.gotIdentity.UserID != "s1" || mock.gotIdentity.Role != "student" {
		t.Errorf("身份未从上下文传入: %+v", mock.gotIdentity)
	}
	if mock.gotIdentity.Email != "s1@school.test" {
		t.Errorf("期望邮箱取自 Token，实际 %q", mock.gotIdentity.Email)
	}
}

func TestProfileHandler_EnsureProfile_Existing(t *testing.T) {
	mock := &mockProfileService{ensureResult: &dto.EnsureProfileResponse{Created: false}}
	h := NewProfileHandler(mock)

	w := serve("POST", "/profiles/me", "/profiles/me",
		jsonBody(dto.EnsureProfileRequest{Grade: "12", Section: "A"}), "s1", "student", h.EnsureProfile)

	expectStatus(t, w, http.StatusOK, 0)
}

func TestProfileHandler_EnsureProfile_Unauthenticated(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	w := serve("POST", "/profiles/me", "/profiles/me", nil, "", "", h.EnsureProfile)

	expectStatus(t, w, http.StatusUnauthorized, 10002)
}

func TestProfileHandler_GetProfile_StudentCannotReadOthers(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{getResult: &dto.ProfileResponse{UserID: "s2"}})

	w := serve("GET", "/profiles/:id", "/profiles/s2", nil, "s1", "student", h.GetProfile)

	expectStatus(t, w, http.StatusForbidden, 11004)
}

func TestProfileHandler_GetProfile_TeacherNotFound(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{getErr: service.ErrProfileNotFound})

	w := serve("GET", "/profiles/:id", "/profiles/s9", nil, "t1", "teacher", h.GetProfile)

	expectStatus(t, w, http.StatusNotFound, 11001)
}

func TestProfileHandler_ListProfiles_Paging(t *testing.T) {
	mock := &mockProfileService{
		listResult: []dto.ProfileResponse{{UserID: "s3"}},
		listTotal:  3,
	}
	h := NewProfileHandler(mock)

	w := serve("GET", "/profiles", "/profiles?page=2&page_size=2", nil, "t1", "teacher", h.ListProfiles)

	expectStatus(t, w, http.StatusOK, 0)
	if mock.gotListReq == nil || mock.gotListReq.GetPage() != 2 || mock.gotListReq.GetPageSize() != 2 {
		t.Errorf("分页参数未正确绑定: %+v", mock.gotListReq)
	}

	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.Total != 3 || body.Data.Pagination.TotalPages != 2 {
		t.Errorf("期望 total=3 total_pages=2，实际 %+v", body.Data.Pagination)
	}
}

func TestProfileHandler_ListProfiles_BadPageSize(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	w := serve("GET", "/profiles", "/profiles?page_size=500", nil, "t1", "teacher", h.ListProfiles)

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestProfileHandler_Deactivate_Self(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{deactErr: service.ErrSelfDeactivate})

	w := serve("PUT", "/profiles/:id/deactivate", "/profiles/t1/deactivate", nil, "t1", "teacher", h.Deactivate)

	expectStatus(t, w, http.StatusBadRequest, 11003)
}

func TestProfileHandler_Deactivate_TeacherTarget(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{deactErr: service.ErrNoPermission})

	w := serve("PUT", "/profiles/:id/deactivate", "/profiles/t2/deactivate", nil, "t1", "teacher", h.Deactivate)

	expectStatus(t, w, http.StatusForbidden, 11004)
}

// ═══════════════════════════════════════════════════════════
// ClassHandler Tests
// ═══════════════════════════════════════════════════════════

func validClassRequest() dto.CreateClassRequest {
	return dto.CreateClassRequest{Name: "Math-12A", Subject: "Math", Grade: "12", Section: "A"}
}

func TestClassHandler_CreateClass_Success(t *testing.T) {
	mock := &mockRosterService{createResult: &dto.CreateClassResponse{
		Class:      dto.ClassResponse{ClassID: "c1", Students: []string{"s1", "s2"}},
		Enrollment: &dto.EnrollmentResult{ClassID: "c1", Matched: 2, Enrolled: 2},
	}}
	h := NewClassHandler(mock)

	w := serve("POST", "/classes", "/classes", jsonBody(validClassRequest()), "t1", "teacher", h.CreateClass)

	expectStatus(t, w, http.StatusCreated, 0)
}

func TestClassHandler_CreateClass_BadJSON(t *testing.T) {
	h := NewClassHandler(&mockRosterService{})

	w := serve("POST", "/classes", "/classes", bytes.NewReader([]byte("invalid json")), "t1", "teacher", h.CreateClass)

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestClassHandler_CreateClass_TeacherNotFound(t *testing.T) {
	h := NewClassHandler(&mockRosterService{createErr: service.ErrTeacherNotFound})

	w := serve("POST", "/classes", "/classes", jsonBody(validClassRequest()), "t1", "teacher", h.CreateClass)

	expectStatus(t, w, http.StatusNotFound, 12002)
}

func TestClassHandler_RefreshEnrollment_NotOwner(t *testing.T) {
	h := NewClassHandler(&mockRosterService{refreshErr: service.ErrNotClassOwner})

	w := serve("POST", "/classes/:id/enrollment/refresh", "/classes/"+testClassID+"/enrollment/refresh", nil, "t2", "teacher", h.RefreshEnrollment)

	expectStatus(t, w, http.StatusForbidden, 12003)
}

func TestClassHandler_ListMyClasses(t *testing.T) {
	h := NewClassHandler(&mockRosterService{listResult: []dto.ClassResponse{{ClassID: testClassID, Name: "数学一班"}}})

	w := serve("GET", "/classes", "/classes", nil, "t1", "teacher", h.ListMyClasses)
	expectStatus(t, w, http.StatusOK, 0)

	var body struct {
		Data []dto.ClassResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ClassID != testClassID {
		t.Errorf("班级列表不符: %+v", body.Data)
	}
}

func TestHandlers_MalformedPathIDIsNotFound(t *testing.T) {
	class := NewClassHandler(&mockRosterService{getResult: &dto.ClassResponse{ClassID: testClassID}})
	assignment := NewAssignmentHandler(&mockAssignmentService{createResult: &dto.AssignmentResponse{AssignmentID: testAssignmentID}})
	membership := NewMembershipHandler(&mockMembershipService{result: &dto.MembershipResponse{ID: testCommunityID}})
	export := NewExportHandler(&mockExportService{})

	tests := []struct {
		name    string
		method  string
		route   string
		target  string
		handler gin.HandlerFunc
		code    int
	}{
		{"班级", "GET", "/classes/:id", "/classes/c1", class.GetClass, 12001},
		{"班级作业", "GET", "/classes/:id/assignments", "/classes/abc/assignments", assignment.ListClassAssignments, 12001},
		{"作业", "GET", "/assignments/:id", "/assignments/a1", assignment.GetAssignment, 14001},
		{"社团", "POST", "/communities/:id/members", "/communities/chess-club/members", membership.JoinCommunity, 16001},
		{"活动", "POST", "/events/:id/registrations", "/events/e1/registrations", membership.RegisterEvent, 16002},
		{"导出", "GET", "/classes/:id/attendance/export", "/classes/1/attendance/export", export.ExportClassAttendance, 12001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.method, tt.route, tt.target, nil, "t1", "teacher", tt.handler)
			expectStatus(t, w, http.StatusNotFound, tt.code)
		})
	}
}

// ═══════════════════════════════════════════════════════════
// AttendanceHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAttendanceHandler_MarkAttendance_Success(t *testing.T) {
	mock := &mockAttendanceService{markResult: &dto.MarkAttendanceResponse{
		StudentID: "s1", Date: "2024-01-20", Status: "present", AttendancePercentage: 100, Attempts: 1,
	}}
	h := NewAttendanceHandler(mock)

	w := serve("POST", "/attendance", "/attendance", jsonBody(dto.MarkAttendanceRequest{
		StudentID: "s1", Date: "2024-01-20", Status: "present",
	}), "t1", "teacher", h.MarkAttendance)

	expectStatus(t, w, http.StatusCreated, 0)
}

func TestAttendanceHandler_MarkAttendance_InvalidStatus(t *testing.T) {
	mock := &mockAttendanceService{}
	h := NewAttendanceHandler(mock)

	w := serve("POST", "/attendance", "/attendance", jsonBody(map[string]string{
		"student_id": "s1", "date": "2024-01-20", "status": "excused",
	}), "t1", "teacher", h.MarkAttendance)

	expectStatus(t, w, http.StatusBadRequest, 10001)
	if mock.markCalled {
		t.Error("参数校验失败时不应调用 Service")
	}
}

func TestAttendanceHandler_MarkAttendance_InvalidDate(t *testing.T) {
	mock := &mockAttendanceService{}
	h := NewAttendanceHandler(mock)

	w := serve("POST", "/attendance", "/attendance", jsonBody(map[string]string{
		"student_id": "s1", "date": "20/01/2024", "status": "present",
	}), "t1", "teacher", h.MarkAttendance)

	expectStatus(t, w, http.StatusBadRequest, 10001)
	if mock.markCalled {
		t.Error("日期格式错误时不应调用 Service")
	}
}

func TestAttendanceHandler_MarkAttendance_OptimisticConflict(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{
		markErr: fmt.Errorf("重试 4 次后仍冲突: %w", pkgerrors.ErrOptimisticLock),
	})

	w := serve("POST", "/attendance", "/attendance", jsonBody(dto.MarkAttendanceRequest{
		StudentID: "s1", Date: "2024-01-20", Status: "present",
	}), "t1", "teacher", h.MarkAttendance)

	expectStatus(t, w, http.StatusConflict, 10006)
}

func TestAttendanceHandler_MarkClassAttendance_PartiallyApplied(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{
		classErr: fmt.Errorf("%w: 已提交 2 批: 写入失败", service.ErrPartiallyApplied),
	})

	w := serve("POST", "/classes/:id/attendance", "/classes/"+testClassID+"/attendance", jsonBody(dto.MarkClassAttendanceRequest{
		Date:    "2024-01-20",
		Entries: []dto.ClassAttendanceEntry{{StudentID: "s1", Status: "present"}},
	}), "t1", "teacher", h.MarkClassAttendance)

	expectStatus(t, w, http.StatusInternalServerError, 10007)
	if resp := parseResponse(w); resp.Details == "" {
		t.Error("部分生效时应返回错误详情")
	}
}

func TestAttendanceHandler_MarkClassAttendance_EmptyEntries(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{})

	w := serve("POST", "/classes/:id/attendance", "/classes/"+testClassID+"/attendance", jsonBody(dto.MarkClassAttendanceRequest{
		Date: "2024-01-20",
	}), "t1", "teacher", h.MarkClassAttendance)

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestAttendanceHandler_ListStudentAttendance_Access(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{listResult: &dto.StudentAttendanceResponse{StudentID: "s1"}})

	w := serve("GET", "/students/:id/attendance", "/students/s1/attendance", nil, "s1", "student", h.ListStudentAttendance)
	expectStatus(t, w, http.StatusOK, 0)

	w = serve("GET", "/students/:id/attendance", "/students/s2/attendance", nil, "s1", "student", h.ListStudentAttendance)
	expectStatus(t, w, http.StatusForbidden, 13004)

	w = serve("GET", "/students/:id/attendance", "/students/s2/attendance", nil, "t1", "teacher", h.ListStudentAttendance)
	expectStatus(t, w, http.StatusOK, 0)
}

func TestAttendanceHandler_ListAttendanceLog_Access(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{logResult: []dto.AttendanceEntryResponse{
		{Date: "2024-01-20", Status: "absent"},
		{Date: "2024-01-20", Status: "present"},
	}})

	w := serve("GET", "/students/:id/attendance/log", "/students/s1/attendance/log", nil, "s1", "student", h.ListAttendanceLog)
	expectStatus(t, w, http.StatusOK, 0)

	w = serve("GET", "/students/:id/attendance/log", "/students/s2/attendance/log", nil, "s1", "student", h.ListAttendanceLog)
	expectStatus(t, w, http.StatusForbidden, 13004)

	h = NewAttendanceHandler(&mockAttendanceService{listErr: service.ErrProfileNotFound})
	w = serve("GET", "/students/:id/attendance/log", "/students/s9/attendance/log", nil, "t1", "teacher", h.ListAttendanceLog)
	expectStatus(t, w, http.StatusNotFound, 13003)
}

// ═══════════════════════════════════════════════════════════
// AssignmentHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAssignmentHandler_CreateAssignment_InvalidClassID(t *testing.T) {
	h := NewAssignmentHandler(&mockAssignmentService{})

	w := serve("POST", "/assignments", "/assignments", jsonBody(map[string]interface{}{
		"class_id": "not-a-uuid", "title": "HW1", "subject": "Math",
		"due_date": "2024-02-01T00:00:00Z", "max_marks": 100,
	}), "t1", "teacher", h.CreateAssignment)

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestAssignmentHandler_SubmitAssignment_UsesCaller(t *testing.T) {
	mock := &mockAssignmentService{submitResult: &dto.SubmitAssignmentResponse{SubmissionRate: 25}}
	h := NewAssignmentHandler(mock)

	w := serve("POST", "/assignments/:id/submissions", "/assignments/"+testAssignmentID+"/submissions",
		jsonBody(dto.SubmitAssignmentRequest{Content: "answer"}), "s1", "student", h.SubmitAssignment)

	expectStatus(t, w, http.StatusOK, 0)
	if mock.gotStudentID != "s1" {
		t.Errorf("期望以当前用户提交，实际 %q", mock.gotStudentID)
	}
}

func TestAssignmentHandler_SubmitAssignment_NotEnrolled(t *testing.T) {
	h := NewAssignmentHandler(&mockAssignmentService{submitErr: service.ErrNotEnrolled})

	w := serve("POST", "/assignments/:id/submissions", "/assignments/"+testAssignmentID+"/submissions",
		jsonBody(dto.SubmitAssignmentRequest{Content: "answer"}), "s9", "student", h.SubmitAssignment)

	expectStatus(t, w, http.StatusForbidden, 14003)
}

func TestAssignmentHandler_GradeSubmission_AlreadyGraded(t *testing.T) {
	h := NewAssignmentHandler(&mockAssignmentService{gradeErr: service.ErrAlreadyGraded})

	w := serve("PUT", "/assignments/:id/submissions/:studentId/grade", "/assignments/"+testAssignmentID+"/submissions/s1/grade",
		jsonBody(dto.GradeSubmissionRequest{Grade: floatPtr(80)}), "t1", "teacher", h.GradeSubmission)

	expectStatus(t, w, http.StatusConflict, 14004)
}

func TestAssignmentHandler_GradeSubmission_MissingGrade(t *testing.T) {
	h := NewAssignmentHandler(&mockAssignmentService{})

	w := serve("PUT", "/assignments/:id/submissions/:studentId/grade", "/assignments/"+testAssignmentID+"/submissions/s1/grade",
		jsonBody(map[string]string{"feedback": "good"}), "t1", "teacher", h.GradeSubmission)

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestAssignmentHandler_GradeSubmission_ZeroIsValid(t *testing.T) {
	h := NewAssignmentHandler(&mockAssignmentService{gradeResult: &dto.GradeSubmissionResponse{}})

	w := serve("PUT", "/assignments/:id/submissions/:studentId/grade", "/assignments/"+testAssignmentID+"/submissions/s1/grade",
		jsonBody(dto.GradeSubmissionRequest{Grade: floatPtr(0)}), "t1", "teacher", h.GradeSubmission)

	expectStatus(t, w, http.StatusOK, 0)
}

func TestAssignmentHandler_ListClassAssignments(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"成功", nil, http.StatusOK, 0},
		{"班级不存在", service.ErrClassNotFound, http.StatusNotFound, 12001},
		{"不在班级中", service.ErrNoPermission, http.StatusForbidden, 14009},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAssignmentHandler(&mockAssignmentService{
				listResult: []dto.AssignmentResponse{{AssignmentID: testAssignmentID, ClassID: testClassID}},
				listErr:    tt.err,
			})
			w := serve("GET", "/classes/:id/assignments", "/classes/"+testClassID+"/assignments", nil, "s1", "student", h.ListClassAssignments)
			expectStatus(t, w, tt.status, tt.code)
		})
	}
}

// ═══════════════════════════════════════════════════════════
// GradeHandler Tests
// ═══════════════════════════════════════════════════════════

func TestGradeHandler_RecordGrade(t *testing.T) {
	mock := &mockGradeService{result: &dto.RecordGradeResponse{CurrentGPA: 9}}
	h := NewGradeHandler(mock)

	w := serve("POST", "/grades", "/grades", jsonBody(dto.RecordGradeRequest{
		StudentID: "s1", Subject: "Math", Marks: floatPtr(899), MaxMarks: 1000,
	}), "t1", "teacher", h.RecordGrade)
	expectStatus(t, w, http.StatusCreated, 0)

	mock.called = false
	w = serve("POST", "/grades", "/grades", jsonBody(map[string]interface{}{
		"student_id": "s1", "subject": "Math", "max_marks": 100,
	}), "t1", "teacher", h.RecordGrade)
	expectStatus(t, w, http.StatusBadRequest, 10001)
	if mock.called {
		t.Error("缺少分数时不应调用 Service")
	}
}

func TestGradeHandler_RecordGrade_InvalidGrade(t *testing.T) {
	h := NewGradeHandler(&mockGradeService{err: service.ErrInvalidGrade})

	w := serve("POST", "/grades", "/grades", jsonBody(dto.RecordGradeRequest{
		StudentID: "s1", Subject: "Math", Marks: floatPtr(120), MaxMarks: 100,
	}), "t1", "teacher", h.RecordGrade)

	expectStatus(t, w, http.StatusBadRequest, 15001)
}

func TestGradeHandler_ListStudentGrades(t *testing.T) {
	h := NewGradeHandler(&mockGradeService{list: &dto.StudentGradesResponse{StudentID: "s1", AveragePercentage: 85}})

	w := serve("GET", "/students/:id/grades", "/students/s1/grades", nil, "s1", "student", h.ListStudentGrades)
	expectStatus(t, w, http.StatusOK, 0)

	w = serve("GET", "/students/:id/grades", "/students/s2/grades", nil, "s1", "student", h.ListStudentGrades)
	expectStatus(t, w, http.StatusForbidden, 15003)

	h = NewGradeHandler(&mockGradeService{err: service.ErrProfileNotFound})
	w = serve("GET", "/students/:id/grades", "/students/s9/grades", nil, "t1", "teacher", h.ListStudentGrades)
	expectStatus(t, w, http.StatusNotFound, 15002)
}

// ═══════════════════════════════════════════════════════════
// MembershipHandler Tests
// ═══════════════════════════════════════════════════════════

func TestMembershipHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"已是成员", service.ErrAlreadyMember, http.StatusConflict, 16003},
		{"社团不存在", service.ErrCommunityNotFound, http.StatusNotFound, 16001},
		{"名额已满", service.ErrEventFull, http.StatusConflict, 16007},
		{"未报名", service.ErrNotRegistered, http.StatusBadRequest, 16006},
		{"存储异常", fmt.Errorf("connection reset"), http.StatusInternalServerError, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMembershipHandler(&mockMembershipService{err: tt.err})
			w := serve("POST", "/communities/:id/members", "/communities/"+testCommunityID+"/members", nil, "s1", "student", h.JoinCommunity)
			expectStatus(t, w, tt.status, tt.code)
		})
	}
}

func TestMembershipHandler_LeaveCommunity(t *testing.T) {
	h := NewMembershipHandler(&mockMembershipService{result: &dto.MembershipResponse{ID: "c1", UserID: "s1", IsMember: false, Count: 0}})

	w := serve("DELETE", "/communities/:id/members", "/communities/"+testCommunityID+"/members", nil, "s1", "student", h.LeaveCommunity)

	expectStatus(t, w, http.StatusOK, 0)
}

func TestMembershipHandler_IssueCertificate(t *testing.T) {
	h := NewMembershipHandler(&mockMembershipService{cert: &dto.CertificateResponse{Code: "CERT-ABCDEFGH-12345678"}})

	w := serve("POST", "/events/:id/certificates", "/events/"+testEventID+"/certificates",
		jsonBody(dto.IssueCertificateRequest{UserID: "s1", Type: "winner"}), "t1", "teacher", h.IssueCertificate)
	expectStatus(t, w, http.StatusCreated, 0)

	w = serve("POST", "/events/:id/certificates", "/events/"+testEventID+"/certificates",
		jsonBody(dto.IssueCertificateRequest{UserID: "s1", Type: "mvp"}), "t1", "teacher", h.IssueCertificate)
	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestMembershipHandler_CreateCommunity(t *testing.T) {
	h := NewMembershipHandler(&mockMembershipService{community: &dto.CommunityResponse{CommunityID: testCommunityID, Name: "棋社"}})

	w := serve("POST", "/communities", "/communities", jsonBody(dto.CreateCommunityRequest{Name: "棋社", Category: "兴趣"}), "t1", "teacher", h.CreateCommunity)
	expectStatus(t, w, http.StatusCreated, 0)

	w = serve("POST", "/communities", "/communities", jsonBody(dto.CreateCommunityRequest{}), "t1", "teacher", h.CreateCommunity)
	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestMembershipHandler_CreateEvent(t *testing.T) {
	h := NewMembershipHandler(&mockMembershipService{event: &dto.EventResponse{EventID: testEventID, Title: "运动会"}})

	w := serve("POST", "/events", "/events", jsonBody(map[string]interface{}{
		"title":            "运动会",
		"starts_at":        "2024-05-01T09:00:00Z",
		"max_participants": 100,
	}), "t1", "teacher", h.CreateEvent)
	expectStatus(t, w, http.StatusCreated, 0)

	// 缺少开始时间
	w = serve("POST", "/events", "/events", jsonBody(map[string]interface{}{"title": "运动会"}), "t1", "teacher", h.CreateEvent)
	expectStatus(t, w, http.StatusBadRequest, 10001)

	h = NewMembershipHandler(&mockMembershipService{err: service.ErrInvalidEventTime})
	w = serve("POST", "/events", "/events", jsonBody(map[string]interface{}{
		"title":     "运动会",
		"starts_at": "2024-05-01T09:00:00Z",
	}), "t1", "teacher", h.CreateEvent)
	expectStatus(t, w, http.StatusBadRequest, 16010)
}

func TestMembershipHandler_ListCertificates_Access(t *testing.T) {
	h := NewMembershipHandler(&mockMembershipService{certs: []dto.CertificateResponse{{Code: "CERT-ABCDEFGH-12345678"}}})

	w := serve("GET", "/profiles/:id/certificates", "/profiles/s1/certificates", nil, "s1", "student", h.ListCertificates)
	expectStatus(t, w, http.StatusOK, 0)

	w = serve("GET", "/profiles/:id/certificates", "/profiles/s2/certificates", nil, "s1", "student", h.ListCertificates)
	expectStatus(t, w, http.StatusForbidden, 16011)

	w = serve("GET", "/profiles/:id/certificates", "/profiles/s2/certificates", nil, "t1", "teacher", h.ListCertificates)
	expectStatus(t, w, http.StatusOK, 0)
}

// ═══════════════════════════════════════════════════════════
// InsightHandler Tests
// ═══════════════════════════════════════════════════════════

func TestInsightHandler_PredictGPA_DefaultsToCaller(t *testing.T) {
	mock := &mockInsightService{predict: &dto.PredictGPAResponse{StudentID: "s1", Fallback: true}}
	h := NewInsightHandler(mock)

	w := serve("POST", "/insights/predict-gpa", "/insights/predict-gpa", nil, "s1", "student", h.PredictGPA)

	expectStatus(t, w, http.StatusOK, 0)
	if mock.gotStudentID != "s1" {
		t.Errorf("期望默认使用当前用户，实际 %q", mock.gotStudentID)
	}
}

func TestInsightHandler_PredictGPA_StudentCannotReadOthers(t *testing.T) {
	h := NewInsightHandler(&mockInsightService{})

	w := serve("POST", "/insights/predict-gpa", "/insights/predict-gpa",
		jsonBody(dto.PredictGPARequest{StudentID: "s2"}), "s1", "student", h.PredictGPA)

	expectStatus(t, w, http.StatusForbidden, 17002)
}

func TestInsightHandler_StudyAssistant_MissingQuestion(t *testing.T) {
	h := NewInsightHandler(&mockInsightService{})

	w := serve("POST", "/insights/study-assistant", "/insights/study-assistant",
		jsonBody(map[string]string{"subject": "Math"}), "s1", "student", h.StudyAssistant)

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportClassAttendance_Success(t *testing.T) {
	h := NewExportHandler(&mockExportService{
		buf:      bytes.NewBufferString("xlsx-bytes"),
		filename: "点名表_Math_12A.xlsx",
	})

	w := serve("GET", "/classes/:id/attendance/export", "/classes/"+testClassID+"/attendance/export", nil, "t1", "teacher", h.ExportClassAttendance)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected Content-Type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("expected Content-Disposition header")
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestExportHandler_ExportClassAttendance_Errors(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrExportNoAttendance})
	w := serve("GET", "/classes/:id/attendance/export", "/classes/"+testClassID+"/attendance/export", nil, "t1", "teacher", h.ExportClassAttendance)
	expectStatus(t, w, http.StatusNotFound, 18001)

	h = NewExportHandler(&mockExportService{err: service.ErrNotClassOwner})
	w = serve("GET", "/classes/:id/attendance/export", "/classes/"+testClassID+"/attendance/export", nil, "t2", "teacher", h.ExportClassAttendance)
	expectStatus(t, w, http.StatusForbidden, 12003)
}

func TestExportHandler_ExportClassSchedule(t *testing.T) {
	h := NewExportHandler(&mockExportService{
		buf:      bytes.NewBufferString("BEGIN:VCALENDAR"),
		filename: "课表_Math_12A.ics",
	})
	w := serve("GET", "/classes/:id/schedule.ics", "/classes/"+testClassID+"/schedule.ics", nil, "s1", "student", h.ExportClassSchedule)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/calendar; charset=utf-8" {
		t.Errorf("unexpected Content-Type %q", ct)
	}

	h = NewExportHandler(&mockExportService{err: service.ErrExportNoPermission})
	w = serve("GET", "/classes/:id/schedule.ics", "/classes/"+testClassID+"/schedule.ics", nil, "s9", "student", h.ExportClassSchedule)
	expectStatus(t, w, http.StatusForbidden, 18003)

	h = NewExportHandler(&mockExportService{err: service.ErrExportNoSchedule})
	w = serve("GET", "/classes/:id/schedule.ics", "/classes/"+testClassID+"/schedule.ics", nil, "t1", "teacher", h.ExportClassSchedule)
	expectStatus(t, w, http.StatusNotFound, 18002)
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Logout_BlacklistsToken(t *testing.T) {
	bl := &mockBlacklist{}
	h := NewAuthHandler(bl)

	w := serve("POST", "/auth/logout", "/auth/logout", nil, "s1", "student", h.Logout)

	expectStatus(t, w, http.StatusOK, 0)
	if bl.jti != "test-jti" {
		t.Errorf("期望吊销 test-jti，实际 %q", bl.jti)
	}
	if bl.ttl <= 0 || bl.ttl > 15*time.Minute {
		t.Errorf("吊销 TTL 应为 Token 剩余有效期，实际 %v", bl.ttl)
	}
}

func TestAuthHandler_Logout_WithoutRedis(t *testing.T) {
	h := NewAuthHandler(nil)

	w := serve("POST", "/auth/logout", "/auth/logout", nil, "s1", "student", h.Logout)

	expectStatus(t, w, http.StatusOK, 0)
}

func TestAuthHandler_Logout_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockBlacklist{})

	w := serve("POST", "/auth/logout", "/auth/logout", nil, "", "", h.Logout)

	expectStatus(t, w, http.StatusUnauthorized, 10002)
}

// ═══════════════════════════════════════════════════════════
// Common Error Mapping
// ═══════════════════════════════════════════════════════════

func TestHandleCommonError(t *testing.T) {
	tests := []struct {
		err     error
		handled bool
		status  int
	}{
		{fmt.Errorf("%w: name", service.ErrInvalidRequest), true, http.StatusBadRequest},
		{pkgerrors.ErrOptimisticLock, true, http.StatusConflict},
		{fmt.Errorf("%w: x", service.ErrPartiallyApplied), true, http.StatusInternalServerError},
		{fmt.Errorf("%w: 600 > 500", pkgerrors.ErrBatchTooLarge), true, http.StatusBadRequest},
		{pkgerrors.ErrDocumentNotFound, true, http.StatusNotFound},
		{realtime.ErrBusClosed, false, http.StatusOK},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		if got := handleCommonError(c, tt.err); got != tt.handled {
			t.Errorf("%v: 期望 handled=%v，实际 %v", tt.err, tt.handled, got)
		}
		if w.Code != tt.status {
			t.Errorf("%v: 期望状态 %d，实际 %d", tt.err, tt.status, w.Code)
		}
	}
}
