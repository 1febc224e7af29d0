package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/realtime"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
	pkgerrors "github.com/shiivaansh/sortED-sub000/pkg/errors"
)

// ── 内存存储 ──
//
// memStore 同时充当所有读取接口与 BatchWriter：
// Commit 先快照整个状态，任一写入失败即回滚，与数据库事务语义一致。

type memState struct {
	users        map[string]*model.User
	faculty      map[string]*model.Faculty
	classes      map[string]*model.ClassSection
	attendance   map[string]*model.AttendanceEntry
	assignments  map[string]*model.Assignment
	submissions  map[string]*model.Submission // assignmentID/studentID
	grades       map[string]*model.GradeRecord
	communities  map[string]*model.Community
	events       map[string]*model.Event
	certificates map[string]*model.Certificate
}

type memStore struct {
	mu      sync.Mutex
	st      *memState
	maxSize int
	commits [][]repository.Mutation
	// failOn 返回非 nil 时该写入失败，整批回滚
	failOn func(m repository.Mutation) error
	// beforeCommit 在快照前调用（锁外），用于模拟并发写入
	beforeCommit func()
}

func newMemStore() *memStore {
	return &memStore{
		maxSize: 500,
		st: &memState{
			users:        map[string]*model.User{},
			faculty:      map[string]*model.Faculty{},
			classes:      map[string]*model.ClassSection{},
			attendance:   map[string]*model.AttendanceEntry{},
			assignments:  map[string]*model.Assignment{},
			submissions:  map[string]*model.Submission{},
			grades:       map[string]*model.GradeRecord{},
			communities:  map[string]*model.Community{},
			events:       map[string]*model.Event{},
			certificates: map[string]*model.Certificate{},
		},
	}
}

func (s *memStore) repository() *repository.Repository {
	return &repository.Repository{
		User:        memUsers{s},
		Faculty:     memFaculty{s},
		Class:       memClasses{s},
		Attendance:  memAttendance{s},
		Assignment:  memAssignments{s},
		Submission:  memSubmissions{s},
		Grade:       memGrades{s},
		Community:   memCommunities{s},
		Event:       memEvents{s},
		Certificate: memCertificates{s},
		Batch:       s,
	}
}

// ── 测试环境 ──

type testEnv struct {
	store *memStore
	bus   *realtime.MemoryBus
	svc   *Service
}

func setupTestService(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Consistency: config.ConsistencyConfig{MaxBatchSize: 500, MaxRetries: 3},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	store := newMemStore()
	store.maxSize = cfg.Consistency.MaxBatchSize
	bus := realtime.NewMemoryBus(16)
	t.Cleanup(func() { _ = bus.Close() })
	return &testEnv{
		store: store,
		bus:   bus,
		svc:   NewService(cfg, store.repository(), bus, nil, zap.NewNop()),
	}
}

// ── 种子数据 ──

func (s *memStore) addStudent(id, grade, section string) *model.User {
	u := &model.User{
		UserID:                id,
		Name:                  "Student " + id,
		Email:                 id + "@school.test",
		Role:                  model.RoleStudent,
		Grade:                 grade,
		Section:               section,
		EnrolledClasses:       pq.StringArray{},
		AssignmentSubmissions: pq.StringArray{},
		AttendanceRecords:     datatypes.JSONSlice[model.AttendanceRecord]{},
		GradeRecords:          datatypes.JSONSlice[model.GradeSnapshot]{},
		IsActive:              true,
		VersionedModel:        model.VersionedModel{Version: 1},
	}
	s.mu.Lock()
	s.st.users[id] = cloneUser(u)
	s.mu.Unlock()
	return u
}

func (s *memStore) addTeacher(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[id] = &model.User{
		UserID:         id,
		Name:           "Teacher " + id,
		Role:           model.RoleTeacher,
		IsActive:       true,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	s.st.faculty[id] = &model.Faculty{FacultyID: id, Name: "Teacher " + id, Classes: pq.StringArray{}}
}

func (s *memStore) addClass(id, teacherID, grade, section string, students ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.classes[id] = &model.ClassSection{
		ClassID:        id,
		Name:           "Class " + id,
		Subject:        "Math",
		Grade:          grade,
		Section:        section,
		TeacherID:      teacherID,
		Students:       append(pq.StringArray{}, students...),
		IsActive:       true,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	for _, st := range students {
		if u, ok := s.st.users[st]; ok {
			u.EnrolledClasses = addToSet(u.EnrolledClasses, id)
		}
	}
}

func (s *memStore) addAssignment(id, classID, teacherID string, maxMarks float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.assignments[id] = &model.Assignment{
		AssignmentID:   id,
		ClassID:        classID,
		TeacherID:      teacherID,
		Title:          "Homework " + id,
		Subject:        "Math",
		DueDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		MaxMarks:       maxMarks,
		VersionedModel: model.VersionedModel{Version: 1},
	}
}

func (s *memStore) addCommunity(id string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.communities[id] = &model.Community{
		CommunityID: id,
		Name:        "Community " + id,
		Members:     append(pq.StringArray{}, members...),
		MemberCount: len(members),
	}
}

func (s *memStore) addEvent(id string, max int, registrations ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events[id] = &model.Event{
		EventID:             id,
		Title:               "Event " + id,
		MaxParticipants:     max,
		Registrations:       append(pq.StringArray{}, registrations...),
		CurrentParticipants: len(registrations),
	}
}

// ── 直接读取（断言用） ──

func (s *memStore) user(id string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.st.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func (s *memStore) class(id string) *model.ClassSection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.st.classes[id]; ok {
		return cloneClass(c)
	}
	return nil
}

func (s *memStore) community(id string) *model.Community {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.st.communities[id]
	c.Members = append(pq.StringArray{}, c.Members...)
	return &c
}

func (s *memStore) event(id string) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *s.st.events[id]
	e.Registrations = append(pq.StringArray{}, e.Registrations...)
	return &e
}

func (s *memStore) assignment(id string) *model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *s.st.assignments[id]
	return &a
}

func (s *memStore) attendanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.attendance)
}

func (s *memStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}

// ── BatchWriter ──

func (s *memStore) MaxSize() int { return s.maxSize }

func (s *memStore) Commit(_ context.Context, muts []repository.Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	if len(muts) > s.maxSize {
		return fmt.Errorf("%w: %d > %d", pkgerrors.ErrBatchTooLarge, len(muts), s.maxSize)
	}
	for _, m := range muts {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if s.beforeCommit != nil {
		s.beforeCommit()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	for i, m := range muts {
		var err error
		if s.failOn != nil {
			err = s.failOn(m)
		}
		if err == nil {
			err = s.apply(m)
		}
		if err != nil {
			s.st = snapshot
			return fmt.Errorf("第 %d 个写入失败 (%s %s): %w", i+1, m.Op, m.Ref.Path(), err)
		}
	}
	s.commits = append(s.commits, append([]repository.Mutation(nil), muts...))
	return nil
}

func (s *memStore) apply(m repository.Mutation) error {
	if m.Op == repository.OpSet {
		return s.applySet(m)
	}

	switch m.Ref.Collection {
	case repository.CollUsers:
		u, ok := s.st.users[m.Ref.ID]
		if !ok {
			return pkgerrors.ErrDocumentNotFound
		}
		if m.ExpectVersion != nil && *m.ExpectVersion != u.Version {
			return pkgerrors.ErrOptimisticLock
		}
		if err := applyUser(u, m); err != nil {
			return err
		}
		u.Version++
	case repository.CollFaculty:
		f, ok := s.st.faculty[m.Ref.ID]
		if !ok {
			return pkgerrors.ErrDocumentNotFound
		}
		if m.Field != model.FacultyColClasses {
			return unsupported(m)
		}
		f.Classes = setOp(f.Classes, m)
	case repository.CollClasses:
		c, ok := s.st.classes[m.Ref.ID]
		if !ok {
			return pkgerrors.ErrDocumentNotFound
		}
		if m.ExpectVersion != nil && *m.ExpectVersion != c.Version {
			return pkgerrors.ErrOptimisticLock
		}
		if m.Field != model.ClassColStudents {
			return unsupported(m)
		}
		c.Students = setOp(c.Students, m)
		c.Version++
	case repository.CollAssignments:
		a, ok := s.st.assignments[m.Ref.ID]
		if !ok {
			return pkgerrors.ErrDocumentNotFound
		}
		if err := applyAssignment(a, m); err != nil {
			return err
		}
		a.Version++
	case repository.CollSubmissions:
		sub, ok := s.st.submissions[m.Ref.ParentID+"/"+m.Ref.ID]
		if !ok {
			return pkgerrors.ErrDocumentNotFound
		}
		return applySubmission(sub, m)
	case repository.CollCommunities:
		c, ok := s.st.communities[m.Ref.ID]
		if !ok {
			return pkgerrors.ErrDocumentNotFound
		}
		switch {
		case m.Field == model.CommunityColMembers:
			c.Members = setOp(c.Members, m)
		case m.Op == repository.OpIncrement && m.Field == model.CommunityColMemberCount:
			c.MemberCount += m.Delta
		case m.Op == repository.OpRecount && m.Field == model.CommunityColMemberCount && m.Value == model.CommunityColMembers:
			c.MemberCount = len(c.Members)
		default:
			return unsupported(m)
		}
	case repository.CollEvents:
		e, ok := s.st.events[m.Ref.ID]
		if !ok {
			return pkgerrors.ErrDocumentNotFound
		}
		switch {
		case m.Field == model.EventColRegistrations:
			e.Registrations = setOp(e.Registrations, m)
		case m.Op == repository.OpIncrement && m.Field == model.EventColCurrentParticipants:
			e.CurrentParticipants += m.Delta
		case m.Op == repository.OpIncrement && m.Field == model.EventColCertificatesIssued:
			e.CertificatesIssued += m.Delta
		case m.Op == repository.OpRecount && m.Field == model.EventColCurrentParticipants && m.Value == model.EventColRegistrations:
			e.CurrentParticipants = len(e.Registrations)
		default:
			return unsupported(m)
		}
	default:
		return unsupported(m)
	}
	return nil
}

func (s *memStore) applySet(m repository.Mutation) error {
	switch doc := m.Doc.(type) {
	case *model.User:
		s.st.users[m.Ref.ID] = cloneUser(doc)
	case *model.Faculty:
		f := *doc
		f.Classes = append(pq.StringArray{}, doc.Classes...)
		s.st.faculty[m.Ref.ID] = &f
	case *model.ClassSection:
		s.st.classes[m.Ref.ID] = cloneClass(doc)
	case *model.AttendanceEntry:
		e := *doc
		s.st.attendance[m.Ref.ID] = &e
	case *model.Assignment:
		a := *doc
		s.st.assignments[m.Ref.ID] = &a
	case *model.Submission:
		sub := *doc
		s.st.submissions[m.Ref.ParentID+"/"+m.Ref.ID] = &sub
	case *model.GradeRecord:
		g := *doc
		s.st.grades[m.Ref.ID] = &g
	case *model.Certificate:
		c := *doc
		s.st.certificates[m.Ref.ID] = &c
	case *model.Community:
		c := *doc
		c.Members = append(pq.StringArray{}, doc.Members...)
		s.st.communities[m.Ref.ID] = &c
	case *model.Event:
		e := *doc
		e.Registrations = append(pq.StringArray{}, doc.Registrations...)
		s.st.events[m.Ref.ID] = &e
	default:
		return unsupported(m)
	}
	return nil
}

func applyUser(u *model.User, m repository.Mutation) error {
	switch m.Op {
	case repository.OpUpdate:
		for k, v := range m.Fields {
			switch k {
			case model.UserColAttendanceRecords:
				u.AttendanceRecords = v.(datatypes.JSONSlice[model.AttendanceRecord])
			case model.UserColAttendancePercentage:
				u.Stats.AttendancePercentage = v.(int)
			case model.UserColGradeRecords:
				u.GradeRecords = v.(datatypes.JSONSlice[model.GradeSnapshot])
			case model.UserColCurrentGPA:
				u.Stats.CurrentGPA = v.(int)
			case model.UserColIsActive:
				u.IsActive = v.(bool)
			case model.UserColLastActive:
				t := v.(time.Time)
				u.LastActive = &t
			default:
				return unsupported(m)
			}
		}
	case repository.OpIncrement:
		switch m.Field {
		case model.UserColAssignmentsSubmitted:
			u.Stats.AssignmentsSubmitted += m.Delta
		case model.UserColCommunitiesJoined:
			u.Stats.CommunitiesJoined += m.Delta
		case model.UserColCertificatesEarned:
			u.Stats.CertificatesEarned += m.Delta
		default:
			return unsupported(m)
		}
	case repository.OpAddToSet, repository.OpRemoveFromSet:
		switch m.Field {
		case model.UserColEnrolledClasses:
			u.EnrolledClasses = setOp(u.EnrolledClasses, m)
		case model.UserColAssignmentSubmissions:
			u.AssignmentSubmissions = setOp(u.AssignmentSubmissions, m)
		default:
			return unsupported(m)
		}
	default:
		return unsupported(m)
	}
	return nil
}

func applyAssignment(a *model.Assignment, m repository.Mutation) error {
	switch m.Op {
	case repository.OpIncrement:
		if m.Field != model.AssignmentColTotalSubmissions {
			return unsupported(m)
		}
		a.Stats.TotalSubmissions += m.Delta
	case repository.OpUpdate:
		for k, v := range m.Fields {
			switch k {
			case model.AssignmentColTotalSubmissions:
				a.Stats.TotalSubmissions = v.(int)
			case model.AssignmentColSubmissionRate:
				a.Stats.SubmissionRate = v.(int)
			case model.AssignmentColAverageGrade:
				a.Stats.AverageGrade = v.(float64)
			default:
				return unsupported(m)
			}
		}
	default:
		return unsupported(m)
	}
	return nil
}

func applySubmission(sub *model.Submission, m repository.Mutation) error {
	if m.Op != repository.OpUpdate {
		return unsupported(m)
	}
	for k, v := range m.Fields {
		switch k {
		case model.SubmissionColGrade:
			g := v.(float64)
			sub.Grade = &g
		case model.SubmissionColFeedback:
			sub.Feedback = v.(string)
		case model.SubmissionColStatus:
			sub.Status = v.(string)
		case model.SubmissionColGradedAt:
			t := v.(time.Time)
			sub.GradedAt = &t
		case model.SubmissionColGradedBy:
			by := v.(string)
			sub.GradedBy = &by
		default:
			return unsupported(m)
		}
	}
	return nil
}

func setOp(set pq.StringArray, m repository.Mutation) pq.StringArray {
	if m.Op == repository.OpRemoveFromSet {
		out := pq.StringArray{}
		for _, v := range set {
			if v != m.Value {
				out = append(out, v)
			}
		}
		return out
	}
	return addToSet(set, m.Value)
}

func addToSet(set pq.StringArray, v string) pq.StringArray {
	for _, x := range set {
		if x == v {
			return set
		}
	}
	return append(set, v)
}

func unsupported(m repository.Mutation) error {
	return fmt.Errorf("mock 不支持的写入: %s %s field=%q fields=%v", m.Op, m.Ref.Path(), m.Field, m.Fields)
}

// ── 深拷贝 ──

func cloneUser(u *model.User) *model.User {
	c := *u
	c.EnrolledClasses = append(pq.StringArray{}, u.EnrolledClasses...)
	c.AssignmentSubmissions = append(pq.StringArray{}, u.AssignmentSubmissions...)
	c.AttendanceRecords = append(datatypes.JSONSlice[model.AttendanceRecord]{}, u.AttendanceRecords...)
	c.GradeRecords = append(datatypes.JSONSlice[model.GradeSnapshot]{}, u.GradeRecords...)
	return &c
}

func cloneClass(cl *model.ClassSection) *model.ClassSection {
	c := *cl
	c.Students = append(pq.StringArray{}, cl.Students...)
	c.Schedule = append(datatypes.JSONSlice[model.ScheduleSlot]{}, cl.Schedule...)
	return &c
}

func (st *memState) clone() *memState {
	out := &memState{
		users:        make(map[string]*model.User, len(st.users)),
		faculty:      make(map[string]*model.Faculty, len(st.faculty)),
		classes:      make(map[string]*model.ClassSection, len(st.classes)),
		attendance:   make(map[string]*model.AttendanceEntry, len(st.attendance)),
		assignments:  make(map[string]*model.Assignment, len(st.assignments)),
		submissions:  make(map[string]*model.Submission, len(st.submissions)),
		grades:       make(map[string]*model.GradeRecord, len(st.grades)),
		communities:  make(map[string]*model.Community, len(st.communities)),
		events:       make(map[string]*model.Event, len(st.events)),
		certificates: make(map[string]*model.Certificate, len(st.certificates)),
	}
	for k, v := range st.users {
		out.users[k] = cloneUser(v)
	}
	for k, v := range st.faculty {
		f := *v
		f.Classes = append(pq.StringArray{}, v.Classes...)
		out.faculty[k] = &f
	}
	for k, v := range st.classes {
		out.classes[k] = cloneClass(v)
	}
	for k, v := range st.attendance {
		e := *v
		out.attendance[k] = &e
	}
	for k, v := range st.assignments {
		a := *v
		out.assignments[k] = &a
	}
	for k, v := range st.submissions {
		sub := *v
		out.submissions[k] = &sub
	}
	for k, v := range st.grades {
		g := *v
		out.grades[k] = &g
	}
	for k, v := range st.communities {
		c := *v
		c.Members = append(pq.StringArray{}, v.Members...)
		out.communities[k] = &c
	}
	for k, v := range st.events {
		e := *v
		e.Registrations = append(pq.StringArray{}, v.Registrations...)
		out.events[k] = &e
	}
	for k, v := range st.certificates {
		c := *v
		out.certificates[k] = &c
	}
	return out
}

// ── 读取接口适配 ──

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.st.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUsers) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := r.s.st.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (r memUsers) ListActiveStudentsByGradeSection(_ context.Context, grade, section string) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.User{}
	for _, u := range r.s.st.users {
		if u.Grade == grade && u.Section == section && u.IsActive && u.Role == model.RoleStudent {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r memUsers) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := []model.User{}
	for _, u := range r.s.st.users {
		all = append(all, *cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.User{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

type memFaculty struct{ s *memStore }

func (r memFaculty) GetByID(_ context.Context, id string) (*model.Faculty, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if f, ok := r.s.st.faculty[id]; ok {
		c := *f
		c.Classes = append(pq.StringArray{}, f.Classes...)
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type memClasses struct{ s *memStore }

func (r memClasses) GetByID(_ context.Context, id string) (*model.ClassSection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.st.classes[id]; ok {
		return cloneClass(c), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memClasses) list(match func(*model.ClassSection) bool) []model.ClassSection {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.ClassSection{}
	for _, c := range r.s.st.classes {
		if match(c) {
			out = append(out, *cloneClass(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out
}

func (r memClasses) ListActive(_ context.Context) ([]model.ClassSection, error) {
	return r.list(func(c *model.ClassSection) bool { return c.IsActive }), nil
}

func (r memClasses) ListActiveByGradeSection(_ context.Context, grade, section string) ([]model.ClassSection, error) {
	return r.list(func(c *model.ClassSection) bool {
		return c.IsActive && c.Grade == grade && c.Section == section
	}), nil
}

func (r memClasses) ListByTeacher(_ context.Context, teacherID string) ([]model.ClassSection, error) {
	return r.list(func(c *model.ClassSection) bool { return c.TeacherID == teacherID }), nil
}

type memAttendance struct{ s *memStore }

func (r memAttendance) list(match func(*model.AttendanceEntry) bool) []model.AttendanceEntry {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.AttendanceEntry{}
	for _, e := range r.s.st.attendance {
		if match(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].MarkedAt.Before(out[j].MarkedAt)
	})
	return out
}

func (r memAttendance) ListByStudent(_ context.Context, studentID string) ([]model.AttendanceEntry, error) {
	return r.list(func(e *model.AttendanceEntry) bool { return e.StudentID == studentID }), nil
}

func (r memAttendance) ListByClassAndDate(_ context.Context, classID, date string) ([]model.AttendanceEntry, error) {
	return r.list(func(e *model.AttendanceEntry) bool {
		return e.ClassID != nil && *e.ClassID == classID && e.Date == date
	}), nil
}

func (r memAttendance) ListByClass(_ context.Context, classID string) ([]model.AttendanceEntry, error) {
	return r.list(func(e *model.AttendanceEntry) bool { return e.ClassID != nil && *e.ClassID == classID }), nil
}

type memAssignments struct{ s *memStore }

func (r memAssignments) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.st.assignments[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memAssignments) ListByClass(_ context.Context, classID string) ([]model.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Assignment{}
	for _, a := range r.s.st.assignments {
		if a.ClassID == classID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

type memSubmissions struct{ s *memStore }

func (r memSubmissions) Get(_ context.Context, assignmentID, studentID string) (*model.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub, ok := r.s.st.submissions[assignmentID+"/"+studentID]; ok {
		c := *sub
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memSubmissions) ListByAssignment(_ context.Context, assignmentID string) ([]model.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Submission{}
	for _, sub := range r.s.st.submissions {
		if sub.AssignmentID == assignmentID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

type memGrades struct{ s *memStore }

func (r memGrades) ListByStudent(_ context.Context, studentID string) ([]model.GradeRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.GradeRecord{}
	for _, g := range r.s.st.grades {
		if g.StudentID == studentID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

type memCommunities struct{ s *memStore }

func (r memCommunities) GetByID(_ context.Context, id string) (*model.Community, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.st.communities[id]; ok {
		cp := *c
		cp.Members = append(pq.StringArray{}, c.Members...)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memCommunities) List(_ context.Context) ([]model.Community, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Community{}
	for _, c := range r.s.st.communities {
		cp := *c
		cp.Members = append(pq.StringArray{}, c.Members...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommunityID < out[j].CommunityID })
	return out, nil
}

type memEvents struct{ s *memStore }

func (r memEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.st.events[id]; ok {
		cp := *e
		cp.Registrations = append(pq.StringArray{}, e.Registrations...)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memEvents) List(_ context.Context) ([]model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Event{}
	for _, e := range r.s.st.events {
		cp := *e
		cp.Registrations = append(pq.StringArray{}, e.Registrations...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

type memCertificates struct{ s *memStore }

func (r memCertificates) GetByEventAndUser(_ context.Context, eventID, userID string) (*model.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.certificates {
		if c.EventID == eventID && c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memCertificates) ListByUser(_ context.Context, userID string) ([]model.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Certificate{}
	for _, c := range r.s.st.certificates {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}
