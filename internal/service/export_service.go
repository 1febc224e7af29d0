package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoAttendance = errors.New("该班级暂无点名记录")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
	ErrExportNoSchedule   = errors.New("该班级未设置上课时间")
	ErrExportNoPermission = errors.New("仅任课教师和本班学生可以订阅课表")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// ExportClassAttendance 导出班级点名表为 Excel
	ExportClassAttendance(ctx context.Context, teacherID, classID string) (*bytes.Buffer, string, error)
	// ExportClassSchedule 导出班级周课表为 iCalendar
	ExportClassSchedule(ctx context.Context, userID, classID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportClassAttendance：导出班级点名表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "点名表"
//   - 行头：学生（按花名册顺序，之后是已退出花名册但有记录的学生）
//   - 列头：日期（升序），最后一列为出勤率
//   - 单元格：当天最后一次点名的状态
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportClassAttendance(ctx context.Context, teacherID, classID string) (*bytes.Buffer, string, error) {
	// 1. 班级与权限
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		return nil, "", mapNotFound(err, ErrClassNotFound)
	}
	if class.TeacherID != teacherID {
		return nil, "", ErrNotClassOwner
	}

	// 2. 点名流水
	entries, err := s.repo.Attendance.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询点名流水失败", zap.String("class_id", classID), zap.Error(err))
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, "", ErrExportNoAttendance
	}

	// 3. 构建索引: student → date → 最新流水
	latest := make(map[string]map[string]model.AttendanceEntry)
	dateSet := make(map[string]bool)
	for _, e := range entries {
		byDate, ok := latest[e.StudentID]
		if !ok {
			byDate = make(map[string]model.AttendanceEntry)
			latest[e.StudentID] = byDate
		}
		if cur, ok := byDate[e.Date]; !ok || !e.MarkedAt.Before(cur.MarkedAt) {
			byDate[e.Date] = e
		}
		dateSet[e.Date] = true
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	studentOrder := make([]string, 0, len(latest))
	seen := make(map[string]bool)
	for _, id := range class.Students {
		studentOrder = append(studentOrder, id)
		seen[id] = true
	}
	var extra []string
	for id := range latest {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	studentOrder = append(studentOrder, extra...)

	// 4. 学生姓名
	names := make(map[string]string, len(studentOrder))
	profiles, err := s.repo.User.ListByIDs(ctx, studentOrder)
	if err != nil {
		s.logger.Warn("查询学生姓名失败，导出使用学生 ID", zap.Error(err))
	}
	for _, p := range profiles {
		names[p.UserID] = p.Name
	}

	// 5. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "点名表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", "B", 18)
	lastCol := colName(2 + len(dates))
	f.SetColWidth(sheetName, colName(2), lastCol, 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s（%s-%s）点名表", class.Name, class.Grade, class.Section))
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "学生")
	f.SetCellValue(sheetName, cell("B", row), "学生 ID")
	for i, d := range dates {
		f.SetCellValue(sheetName, cell(colName(2+i), row), d)
	}
	f.SetCellValue(sheetName, cell(lastCol, row), "出勤率")
	f.SetCellStyle(sheetName, cell("A", row), cell(lastCol, row), headerStyle)

	// 数据行
	row = 3
	for _, studentID := range studentOrder {
		name := names[studentID]
		if name == "" {
			name = studentID
		}
		f.SetCellValue(sheetName, cell("A", row), name)
		f.SetCellValue(sheetName, cell("B", row), studentID)

		var records []model.AttendanceRecord
		for i, d := range dates {
			e, ok := latest[studentID][d]
			if !ok {
				f.SetCellValue(sheetName, cell(colName(2+i), row), "-")
				continue
			}
			f.SetCellValue(sheetName, cell(colName(2+i), row), e.Status)
			records = append(records, model.AttendanceRecord{Date: d, Status: e.Status})
		}
		f.SetCellValue(sheetName, cell(lastCol, row), fmt.Sprintf("%d%%", AttendancePercentage(records)))
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("点名表_%s_%s%s.xlsx", class.Name, class.Grade, class.Section)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportClassSchedule：导出班级周课表为 iCalendar (RFC 5545)
// ═══════════════════════════════════════════════════════════
//
// 每个上课时段生成一个每周重复的 VEVENT：
//   - DTSTART/DTEND 为不带时区的本地时间，首次出现在班级创建当周
//   - RRULE:FREQ=WEEKLY;BYDAY=<星期>
//   - UID 由班级 ID 与时段序号组成，重复导出时保持稳定

func (s *exportService) ExportClassSchedule(ctx context.Context, userID, classID string) (*bytes.Buffer, string, error) {
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		return nil, "", mapNotFound(err, ErrClassNotFound)
	}
	if class.TeacherID != userID && !containsString(class.Students, userID) {
		return nil, "", ErrExportNoPermission
	}
	if len(class.Schedule) == 0 {
		return nil, "", ErrExportNoSchedule
	}

	now := nowFunc()
	anchor := class.CreatedAt
	if anchor.IsZero() {
		anchor = now
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//sortED//class schedule//EN")
	cal.SetXWRCalName(fmt.Sprintf("%s %s-%s", class.Name, class.Grade, class.Section))

	for i, slot := range class.Schedule {
		wd, ok := weekdays[slot.Day]
		if !ok {
			s.logger.Warn("跳过非法上课时段", zap.String("class_id", classID), zap.String("day", slot.Day))
			continue
		}
		start, err1 := slotTime(anchor, wd, slot.StartTime)
		end, err2 := slotTime(anchor, wd, slot.EndTime)
		if err1 != nil || err2 != nil || !end.After(start) {
			s.logger.Warn("跳过非法上课时段",
				zap.String("class_id", classID),
				zap.String("start", slot.StartTime),
				zap.String("end", slot.EndTime))
			continue
		}

		evt := cal.AddEvent(fmt.Sprintf("%s-%d@sorted", class.ClassID, i))
		evt.SetDtStampTime(now)
		evt.SetSummary(fmt.Sprintf("%s（%s）", class.Subject, class.Name))
		if slot.Room != "" {
			evt.SetLocation(slot.Room)
		}
		evt.AddProperty(ics.ComponentPropertyDtStart, start.Format(icsLocalLayout))
		evt.AddProperty(ics.ComponentPropertyDtEnd, end.Format(icsLocalLayout))
		evt.AddProperty(ics.ComponentPropertyRrule, "FREQ=WEEKLY;BYDAY="+icsDay[wd])
	}

	if len(cal.Events()) == 0 {
		return nil, "", ErrExportNoSchedule
	}

	filename := fmt.Sprintf("课表_%s_%s%s.ics", class.Name, class.Grade, class.Section)
	return bytes.NewBufferString(cal.Serialize()), filename, nil
}

// ── 辅助函数 ──

const icsLocalLayout = "20060102T150405"

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday, "sunday": time.Sunday,
}

var icsDay = map[time.Weekday]string{
	time.Monday: "MO", time.Tuesday: "TU", time.Wednesday: "WE",
	time.Thursday: "TH", time.Friday: "FR", time.Saturday: "SA", time.Sunday: "SU",
}

// slotTime anchor 当天或之后第一个 wd 的 hh:mm
func slotTime(anchor time.Time, wd time.Weekday, hhmm string) (time.Time, error) {
	clock, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, err
	}
	offset := (int(wd) - int(anchor.Weekday()) + 7) % 7
	day := anchor.AddDate(0, 0, offset)
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC), nil
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
