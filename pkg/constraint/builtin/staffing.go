package builtin

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// minStaffPattern 匹配 "Min. 2" 形式的最低人数要求
var minStaffPattern = regexp.MustCompile(`Min\.\s*(\d+)`)

// MinStaffingEvaluator 最低人数约束
type MinStaffingEvaluator struct {
	*BaseEvaluator
}

// NewMinStaffingEvaluator 创建最低人数规则
func NewMinStaffingEvaluator() *MinStaffingEvaluator {
	return &MinStaffingEvaluator{
		BaseEvaluator: NewBaseEvaluator(
			RuleMinStaffing,
			"最低人数",
			"班次每天的分配人数不少于要求中的 Min. N",
			model.HardnessHard,
			CategoryStaffing,
		),
	}
}

// MinStaff 解析班次的最低人数要求
func MinStaff(shift *model.Shift) (int, bool) {
	for _, req := range shift.Requirements {
		m := minStaffPattern.FindStringSubmatch(req)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		return n, true
	}
	return 0, false
}

// Evaluate 评估整个排班
func (c *MinStaffingEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	var results []constraint.Result
	dates := ctx.Dates()

	for _, shift := range ctx.Shifts {
		if shift == nil {
			continue
		}
		required, ok := MinStaff(shift)
		if !ok {
			continue
		}

		for _, date := range dates {
			var employees []uuid.UUID
			for _, a := range ctx.GetDateAssignments(date) {
				if a.ShiftID != shift.ID || ctx.GetEmployee(a.EmployeeID) == nil {
					continue
				}
				employees = append(employees, a.EmployeeID)
			}

			actual := len(employees)
			if actual >= required {
				continue
			}

			results = append(results, c.NewViolation(
				fmt.Sprintf(
					"班次 %s 在 %s 仅有 %d 人，至少需要 %d 人（缺 %d 人）",
					shift.Name, date, actual, required, required-actual,
				),
				constraint.AffectedEntities{
					EmployeeIDs: employees,
					ShiftIDs:    []uuid.UUID{shift.ID},
					Dates:       []string{date},
				},
				map[string]interface{}{
					"required":  required,
					"actual":    actual,
					"shortfall": required - actual,
				},
			))
		}
	}

	return results
}
