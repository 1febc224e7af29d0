package service

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// 物化聚合的维护函数
//
// 档案中的 attendance_records / grade_records / stats、作业统计、社团活动计数
// 都只能由本文件的函数计算，服务层拿结果组装写入。

var (
	ErrInvalidDirection = errors.New("成员变更方向只能为 +1 或 -1")
	ErrNoMembershipPair = errors.New("该集合没有成员集合与计数器的配对")
)

// ── 成员集合 / 计数器 ──

type membershipPair struct {
	setField     string
	counterField string
}

var membershipPairs = map[string]membershipPair{
	repository.CollCommunities: {setField: model.CommunityColMembers, counterField: model.CommunityColMemberCount},
	repository.CollEvents:      {setField: model.EventColRegistrations, counterField: model.EventColCurrentParticipants},
}

// MembershipChange 生成成员集合与计数器的成对写入
//
// 计数器使用相对增量，不读取旧值。调用方必须先确认成员关系，
// 对已存在的成员重复 +1 会让计数器与集合不一致。
func MembershipChange(owner repository.DocRef, memberID string, direction int) ([]repository.Mutation, error) {
	pair, ok := membershipPairs[owner.Collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMembershipPair, owner.Collection)
	}
	switch direction {
	case 1:
		return []repository.Mutation{
			repository.AddToSet(owner, pair.setField, memberID),
			repository.Increment(owner, pair.counterField, 1),
		}, nil
	case -1:
		return []repository.Mutation{
			repository.RemoveFromSet(owner, pair.setField, memberID),
			repository.Increment(owner, pair.counterField, -1),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, direction)
	}
}

// ── 点名 ──

// MergeAttendanceRecord 用新记录替换同一天的旧记录，返回新切片
func MergeAttendanceRecord(records []model.AttendanceRecord, rec model.AttendanceRecord) []model.AttendanceRecord {
	out := make([]model.AttendanceRecord, 0, len(records)+1)
	for _, r := range records {
		if r.Date != rec.Date {
			out = append(out, r)
		}
	}
	out = append(out, rec)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// DedupeAttendance 每个日期只保留最后出现的一条
func DedupeAttendance(records []model.AttendanceRecord) []model.AttendanceRecord {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.Date] = i
	}
	out := make([]model.AttendanceRecord, 0, len(last))
	for i, r := range records {
		if last[r.Date] == i {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AttendanceCounts 去重后的出勤天数与总天数，迟到不计为出勤
func AttendanceCounts(records []model.AttendanceRecord) (present, total int) {
	for _, r := range DedupeAttendance(records) {
		total++
		if r.Status == model.AttendancePresent {
			present++
		}
	}
	return present, total
}

// AttendancePercentage round(100 × present / total)，无记录时为 0
func AttendancePercentage(records []model.AttendanceRecord) int {
	present, total := AttendanceCounts(records)
	return roundPercent(present, total)
}

// ── 成绩 ──

// GPABand 百分比换算 GPA：≥90 为 10，否则 floor(p/10)+1，最低 4
func GPABand(p float64) int {
	if p >= 90 {
		return 10
	}
	band := int(math.Floor(p/10)) + 1
	if band < 4 {
		return 4
	}
	return band
}

// AveragePercentage 所有成绩百分比的平均值
func AveragePercentage(grades []model.GradeSnapshot) float64 {
	if len(grades) == 0 {
		return 0
	}
	var sum float64
	for _, g := range grades {
		sum += g.Percentage()
	}
	return sum / float64(len(grades))
}

// CurrentGPA 无成绩记录时为 0（未评定）
func CurrentGPA(grades []model.GradeSnapshot) int {
	if len(grades) == 0 {
		return 0
	}
	return GPABand(AveragePercentage(grades))
}

// ── 作业 ──

// SubmissionRate round(100 × submitted / enrolled)，班级为空时为 0
func SubmissionRate(submitted, enrolled int) int {
	return roundPercent(submitted, enrolled)
}

// AverageGrade 扫描当前全部提交重算平均分，保留两位小数
// includeUngraded 为 true 时未批改的提交按 0 分计入
func AverageGrade(subs []model.Submission, includeUngraded bool) float64 {
	var sum float64
	n := 0
	for _, s := range subs {
		switch {
		case s.Grade != nil && s.Status == model.SubmissionGraded:
			sum += *s.Grade
			n++
		case includeUngraded:
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}

func roundPercent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}
