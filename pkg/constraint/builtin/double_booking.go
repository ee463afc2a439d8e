package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// DoubleBookingEvaluator 同日重复排班约束
type DoubleBookingEvaluator struct {
	*BaseEvaluator
}

// NewDoubleBookingEvaluator 创建重复排班规则
func NewDoubleBookingEvaluator() *DoubleBookingEvaluator {
	return &DoubleBookingEvaluator{
		BaseEvaluator: NewBaseEvaluator(
			RuleNoDoubleBooking,
			"禁止重复排班",
			"同一员工同一天只能分配一个班次",
			model.HardnessHard,
			CategoryConflict,
		),
	}
}

// Evaluate 评估整个排班
func (c *DoubleBookingEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	var results []constraint.Result

	for _, empID := range ctx.AssignedEmployeeIDs() {
		emp := ctx.GetEmployee(empID)
		if emp == nil {
			continue
		}

		// 按日期分组，记录不同班次
		byDate := make(map[string][]*model.Shift)
		for _, a := range ctx.GetEmployeeAssignments(empID) {
			shift := ctx.GetShift(a.ShiftID)
			if shift == nil {
				continue
			}
			if !containsShift(byDate[a.Date], shift.ID) {
				byDate[a.Date] = append(byDate[a.Date], shift)
			}
		}

		dates := make([]string, 0, len(byDate))
		for d := range byDate {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		for _, date := range dates {
			shifts := byDate[date]
			if len(shifts) < 2 {
				continue
			}

			names := make([]string, len(shifts))
			ids := make([]uuid.UUID, len(shifts))
			for i, s := range shifts {
				names[i] = s.Name
				ids[i] = s.ID
			}

			results = append(results, c.NewViolation(
				fmt.Sprintf(
					"员工 %s 在 %s 被分配了 %d 个班次: %s",
					employeeLabel(emp), date, len(shifts), strings.Join(names, ", "),
				),
				constraint.AffectedEntities{
					EmployeeIDs: []uuid.UUID{empID},
					ShiftIDs:    ids,
					Dates:       []string{date},
				},
				map[string]interface{}{
					"shiftCount": len(shifts),
					"shiftNames": names,
				},
			))
		}
	}

	return results
}

func containsShift(shifts []*model.Shift, id uuid.UUID) bool {
	for _, s := range shifts {
		if s.ID == id {
			return true
		}
	}
	return false
}
