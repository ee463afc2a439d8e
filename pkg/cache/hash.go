package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/model"
)

// triple 分配的缓存键组成部分
type triple struct {
	employeeID string
	date       string
	shiftID    string
}

// HashEmployeeAssignments 计算单个员工分配列表的哈希
func HashEmployeeAssignments(empID uuid.UUID, assignments []*model.Assignment) string {
	return hashAssignments("emp:"+empID.String(), assignments, func(a *model.Assignment) bool {
		return a.EmployeeID == empID
	})
}

// HashSchedule 计算日期范围内整个排班的哈希
func HashSchedule(assignments []*model.Assignment, startDate, endDate string) string {
	return hashAssignments("range:"+startDate+".."+endDate, assignments, func(a *model.Assignment) bool {
		return a.Date >= startDate && a.Date <= endDate
	})
}

// HashDay 计算某一天分配的哈希
func HashDay(assignments []*model.Assignment, date string) string {
	return hashAssignments("day:"+date, assignments, func(a *model.Assignment) bool {
		return a.Date == date
	})
}

// HashShifts 计算班次定义的哈希（时间、时长、名称、要求、规则提示）
// 结果与输入顺序无关
func HashShifts(shifts []*model.Shift) string {
	parts := make([]string, 0, len(shifts))
	for _, s := range shifts {
		if s == nil {
			continue
		}
		parts = append(parts, strings.Join([]string{
			s.ID.String(),
			s.Name,
			s.Time,
			strconv.Itoa(s.DurationMinutes),
			strings.Join(s.Requirements, ","),
			strings.Join(s.Rules, ","),
		}, "\x1f"))
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte("shifts\n"))
	h.Write([]byte(strings.Join(parts, "\x1e")))
	return hex.EncodeToString(h.Sum(nil))
}

// hashAssignments 按日期、员工、班次排序后拼接 employeeId:date:shiftId 并计算 sha256
// 结果与输入顺序无关
func hashAssignments(scope string, assignments []*model.Assignment, keep func(*model.Assignment) bool) string {
	triples := make([]triple, 0, len(assignments))
	for _, a := range assignments {
		if a == nil || !keep(a) {
			continue
		}
		triples = append(triples, triple{
			employeeID: a.EmployeeID.String(),
			date:       a.Date,
			shiftID:    a.ShiftID.String(),
		})
	}

	sort.Slice(triples, func(i, j int) bool {
		if triples[i].date != triples[j].date {
			return triples[i].date < triples[j].date
		}
		if triples[i].employeeID != triples[j].employeeID {
			return triples[i].employeeID < triples[j].employeeID
		}
		return triples[i].shiftID < triples[j].shiftID
	})

	parts := make([]string, len(triples))
	for i, t := range triples {
		parts[i] = t.employeeID + ":" + t.date + ":" + t.shiftID
	}

	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}
