package builtin

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// DefaultMaxWeekendsPerMonth 每月建议最多周末班数
const DefaultMaxWeekendsPerMonth = 2

// WeekendDistributionEvaluator 周末班分布（软约束）
type WeekendDistributionEvaluator struct {
	*BaseEvaluator
	maxWeekends int
}

// NewWeekendDistributionEvaluator 创建周末分布规则
func NewWeekendDistributionEvaluator(maxWeekends int) *WeekendDistributionEvaluator {
	if maxWeekends <= 0 {
		maxWeekends = DefaultMaxWeekendsPerMonth
	}
	return &WeekendDistributionEvaluator{
		BaseEvaluator: NewBaseEvaluator(
			RuleMaxWeekends,
			"周末班分布",
			fmt.Sprintf("每人每月最多 %d 个周末有班", maxWeekends),
			model.HardnessSoft,
			CategoryFairness,
		),
		maxWeekends: maxWeekends,
	}
}

// monthWeekends 员工某月的周末班
type monthWeekends struct {
	weekends map[string]bool // 周一日期 -> 存在
	dates    []string
}

// Evaluate 评估整个排班
func (c *WeekendDistributionEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	var results []constraint.Result

	for _, empID := range ctx.AssignedEmployeeIDs() {
		emp := ctx.GetEmployee(empID)
		if emp == nil {
			continue
		}

		months := make(map[string]*monthWeekends)
		for _, a := range ctx.GetEmployeeAssignments(empID) {
			if !ctx.InWindow(a.Date) || !model.IsWeekend(a.Date) || ctx.GetShift(a.ShiftID) == nil {
				continue
			}
			key := model.MonthKey(a.Date)
			m, ok := months[key]
			if !ok {
				m = &monthWeekends{weekends: make(map[string]bool)}
				months[key] = m
			}
			m.weekends[model.WeekStart(a.Date)] = true
			m.dates = append(m.dates, a.Date)
		}

		keys := make([]string, 0, len(months))
		for k := range months {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, month := range keys {
			m := months[month]
			count := len(m.weekends)
			if count <= c.maxWeekends {
				continue
			}

			dates := uniqueDates(m.dates...)
			results = append(results, c.NewViolation(
				fmt.Sprintf(
					"员工 %s 在 %s 有 %d 个周末有班，建议不超过 %d 个",
					employeeLabel(emp), month, count, c.maxWeekends,
				),
				constraint.AffectedEntities{
					EmployeeIDs: []uuid.UUID{empID},
					Dates:       dates,
				},
				map[string]interface{}{
					"month":          month,
					"weekendCount":   count,
					"maxWeekends":    c.maxWeekends,
					"excessWeekends": count - c.maxWeekends,
					"dates":          dates,
				},
			))
		}
	}

	return results
}
