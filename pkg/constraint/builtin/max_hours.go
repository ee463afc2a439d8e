package builtin

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// DefaultMaxWeeklyHours 每周最长工作时间
const DefaultMaxWeeklyHours = 48.0

// MaxWeeklyHoursEvaluator 每周最大工时约束
type MaxWeeklyHoursEvaluator struct {
	*BaseEvaluator
	maxHours            float64
	defaultShiftMinutes int
}

// NewMaxWeeklyHoursEvaluator 创建每周最大工时规则
func NewMaxWeeklyHoursEvaluator(maxHours float64, defaultShiftMinutes int) *MaxWeeklyHoursEvaluator {
	if maxHours <= 0 {
		maxHours = DefaultMaxWeeklyHours
	}
	if defaultShiftMinutes <= 0 {
		defaultShiftMinutes = model.DefaultShiftMinutes
	}
	return &MaxWeeklyHoursEvaluator{
		BaseEvaluator: NewBaseEvaluator(
			RuleMaxWeeklyHours,
			"每周最大工时",
			fmt.Sprintf("每个 ISO 周的工作时间不超过 %.0f 小时", maxHours),
			model.HardnessHard,
			CategoryWorkingTime,
		),
		maxHours:            maxHours,
		defaultShiftMinutes: defaultShiftMinutes,
	}
}

// weekBucket 员工某周的工时汇总
type weekBucket struct {
	minutes  int
	dates    []string
	shiftIDs []uuid.UUID
}

// Evaluate 评估整个排班
func (c *MaxWeeklyHoursEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	var results []constraint.Result
	maxMinutes := int(c.maxHours * 60)

	for _, empID := range ctx.AssignedEmployeeIDs() {
		emp := ctx.GetEmployee(empID)
		if emp == nil {
			continue
		}

		// 按 ISO 周汇总
		buckets := make(map[string]*weekBucket)
		for _, a := range ctx.GetEmployeeAssignments(empID) {
			shift := ctx.GetShift(a.ShiftID)
			if shift == nil {
				continue
			}
			week := model.ISOWeekKey(a.Date)
			if week == "" {
				continue
			}
			b, ok := buckets[week]
			if !ok {
				b = &weekBucket{}
				buckets[week] = b
			}
			b.minutes += shift.EffectiveDurationMinutes(c.defaultShiftMinutes)
			b.dates = append(b.dates, a.Date)
			b.shiftIDs = append(b.shiftIDs, shift.ID)
		}

		weeks := make([]string, 0, len(buckets))
		for w := range buckets {
			weeks = append(weeks, w)
		}
		sort.Strings(weeks)

		for _, week := range weeks {
			b := buckets[week]
			if b.minutes <= maxMinutes {
				continue
			}

			actualHours := float64(b.minutes) / 60
			excessHours := actualHours - c.maxHours
			results = append(results, c.NewViolation(
				fmt.Sprintf(
					"员工 %s 在 %s 周工作 %.1f 小时，超过上限 %.0f 小时（超出 %.1f 小时）",
					employeeLabel(emp), week, actualHours, c.maxHours, excessHours,
				),
				constraint.AffectedEntities{
					EmployeeIDs: []uuid.UUID{empID},
					ShiftIDs:    uniqueIDs(b.shiftIDs...),
					Dates:       uniqueDates(b.dates...),
				},
				map[string]interface{}{
					"actualHours": actualHours,
					"maxHours":    c.maxHours,
					"excessHours": excessHours,
					"isoWeek":     week,
				},
			))
		}
	}

	return results
}
