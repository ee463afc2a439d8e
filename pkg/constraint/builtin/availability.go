package builtin

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// 默认可用性状态码
var (
	DefaultAvailableCodes = []string{"V", "D"} // 可用 / 值班可用
	DefaultPartialCodes   = []string{"T", "K"} // 限时可用 / 排除门诊
)

// AvailabilityEvaluator 可用性约束（同时产生硬约束和软约束结果）
type AvailabilityEvaluator struct {
	*BaseEvaluator
	available map[string]bool
	partial   map[string]bool
}

// NewAvailabilityEvaluator 创建可用性规则
func NewAvailabilityEvaluator(availableCodes, partialCodes []string) *AvailabilityEvaluator {
	if len(availableCodes) == 0 {
		availableCodes = DefaultAvailableCodes
	}
	if partialCodes == nil {
		partialCodes = DefaultPartialCodes
	}
	e := &AvailabilityEvaluator{
		BaseEvaluator: NewBaseEvaluator(
			RuleAvailability,
			"员工可用性",
			"分配日期必须在员工的可用性计划内，部分可用时提示核对班次时间",
			constraint.HardnessBoth,
			CategoryAvailability,
		),
		available: make(map[string]bool, len(availableCodes)),
		partial:   make(map[string]bool, len(partialCodes)),
	}
	for _, code := range availableCodes {
		e.available[code] = true
	}
	for _, code := range partialCodes {
		if !e.available[code] {
			e.partial[code] = true
		}
	}
	return e
}

// Evaluate 评估整个排班
func (c *AvailabilityEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	if len(ctx.Availability) == 0 {
		return nil
	}

	var results []constraint.Result
	for _, a := range ctx.ScopedAssignments() {
		if !ctx.InWindow(a.Date) {
			continue
		}
		emp, shift, ok := resolve(ctx, a)
		if !ok {
			continue
		}

		day := model.DayOfMonth(a.Date)
		if day == 0 {
			continue
		}
		affected := constraint.AffectedEntities{
			EmployeeIDs: []uuid.UUID{emp.ID},
			ShiftIDs:    []uuid.UUID{shift.ID},
			Dates:       []string{a.Date},
		}

		code, found := ctx.Availability.Code(emp.Initials, day)
		if found && c.available[code] {
			continue
		}
		// 不在可用集合内一律为硬约束违规，部分可用再追加提示
		results = append(results, c.NewViolationAs(
			RuleAvailabilityViolation,
			model.HardnessHard,
			fmt.Sprintf(
				"员工 %s 在 %s 不可用（%s），不能分配班次 %s",
				employeeLabel(emp), a.Date, displayCode(code, found), shift.Name,
			),
			affected,
			map[string]interface{}{"code": code, "day": day},
		))
		if found && c.partial[code] {
			results = append(results, c.NewViolationAs(
				RuleAvailabilityPartial,
				model.HardnessSoft,
				fmt.Sprintf(
					"员工 %s 在 %s 仅部分可用（%s），请核对班次 %s 的时间",
					employeeLabel(emp), a.Date, code, shift.Name,
				),
				affected,
				map[string]interface{}{"code": code, "day": day},
			))
		}
	}

	return results
}

func displayCode(code string, found bool) string {
	if !found {
		return "无记录"
	}
	return code
}
