package builtin

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// DefaultMinRestMinutes 法定最短休息时间（11小时）
const DefaultMinRestMinutes = 11 * 60

const minutesPerDay = 24 * 60

// RestPeriodEvaluator 班次间最短休息时间
type RestPeriodEvaluator struct {
	*BaseEvaluator
	minRestMinutes int
}

// NewRestPeriodEvaluator 创建休息时间规则
func NewRestPeriodEvaluator(minRestMinutes int) *RestPeriodEvaluator {
	if minRestMinutes <= 0 {
		minRestMinutes = DefaultMinRestMinutes
	}
	return &RestPeriodEvaluator{
		BaseEvaluator: NewBaseEvaluator(
			RuleRestPeriod,
			"班次间最短休息",
			fmt.Sprintf("两个班次之间至少休息 %d 分钟", minRestMinutes),
			model.HardnessHard,
			CategoryRest,
		),
		minRestMinutes: minRestMinutes,
	}
}

// timedAssignment 带解析时间的分配
type timedAssignment struct {
	assignment *model.Assignment
	shift      *model.Shift
	spec       model.TimeSpec
	timed      bool // 时间可用于计算
}

// Evaluate 评估整个排班
func (c *RestPeriodEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	var results []constraint.Result

	for _, empID := range ctx.AssignedEmployeeIDs() {
		emp := ctx.GetEmployee(empID)
		if emp == nil {
			continue
		}

		entries := c.collect(ctx, empID)
		if len(entries) < 2 {
			continue
		}

		// 检查相邻班次间隔
		for i := 0; i < len(entries)-1; i++ {
			first, second := entries[i], entries[i+1]
			if !first.timed || !second.timed {
				continue
			}

			dayGap, err := model.DaysBetween(first.assignment.Date, second.assignment.Date)
			if err != nil || dayGap < 0 || dayGap > 1 {
				continue
			}

			end := first.spec.EndMinutes
			if first.spec.Overnight() {
				end += minutesPerDay
			}
			start := dayGap*minutesPerDay + second.spec.StartMinutes
			rest := start - end

			if rest >= c.minRestMinutes {
				continue
			}

			shortfall := c.minRestMinutes - rest
			results = append(results, c.NewViolation(
				fmt.Sprintf(
					"员工 %s 在 %s 与 %s 之间仅休息 %s，少于要求的 %s（差 %s）",
					employeeLabel(emp), first.assignment.Date, second.assignment.Date,
					formatMinutes(rest), formatMinutes(c.minRestMinutes), formatMinutes(shortfall),
				),
				constraint.AffectedEntities{
					EmployeeIDs: []uuid.UUID{empID},
					ShiftIDs:    uniqueIDs(first.shift.ID, second.shift.ID),
					Dates:       uniqueDates(first.assignment.Date, second.assignment.Date),
				},
				map[string]interface{}{
					"actualRestMinutes":   rest,
					"requiredRestMinutes": c.minRestMinutes,
					"shortfallMinutes":    shortfall,
					"firstDate":           first.assignment.Date,
					"secondDate":          second.assignment.Date,
				},
			))
		}
	}

	return results
}

// collect 收集员工的分配并按日期、开始时间排序
func (c *RestPeriodEvaluator) collect(ctx *constraint.Context, empID uuid.UUID) []timedAssignment {
	assignments := ctx.GetEmployeeAssignments(empID)
	entries := make([]timedAssignment, 0, len(assignments))
	for _, a := range assignments {
		shift := ctx.GetShift(a.ShiftID)
		if shift == nil {
			continue
		}
		spec, err := shift.ParseTime()
		entries = append(entries, timedAssignment{
			assignment: a,
			shift:      shift,
			spec:       spec,
			timed:      err == nil && !spec.Flexible,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].assignment.Date != entries[j].assignment.Date {
			return entries[i].assignment.Date < entries[j].assignment.Date
		}
		return entries[i].spec.StartMinutes < entries[j].spec.StartMinutes
	})
	return entries
}

// formatMinutes 分钟数格式化为 XhYYm
func formatMinutes(minutes int) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%dh%02dm", sign, minutes/60, minutes%60)
}

// uniqueIDs 去重并保持顺序
func uniqueIDs(ids ...uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

// uniqueDates 去重并排序
func uniqueDates(dates ...string) []string {
	seen := make(map[string]bool, len(dates))
	result := make([]string, 0, len(dates))
	for _, d := range dates {
		if !seen[d] {
			seen[d] = true
			result = append(result, d)
		}
	}
	sort.Strings(result)
	return result
}
