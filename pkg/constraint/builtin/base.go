// Package builtin 提供内置校验规则实现
package builtin

import (
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// 规则ID
const (
	RuleRestPeriod      = "REST_PERIOD_11H"
	RuleMaxWeeklyHours  = "MAX_WEEKLY_HOURS_48"
	RuleQualification   = "QUALIFICATION_MATCH"
	RuleNoDoubleBooking = "NO_DOUBLE_BOOKING"
	RuleMinStaffing     = "MIN_STAFFING"
	RuleMaxWeekends     = "MAX_WEEKENDS_PER_MONTH"
	RuleAvailability    = "AVAILABILITY"

	// 可用性规则产生的两类结果
	RuleAvailabilityViolation = "AVAILABILITY_VIOLATION"
	RuleAvailabilityPartial   = "AVAILABILITY_PARTIAL"
)

// 规则类别
const (
	CategoryRest          = "rest"
	CategoryWorkingTime   = "working_time"
	CategoryQualification = "qualification"
	CategoryConflict      = "conflict"
	CategoryStaffing      = "staffing"
	CategoryFairness      = "fairness"
	CategoryAvailability  = "availability"
)

// BaseEvaluator 规则基类
type BaseEvaluator struct {
	name        string
	title       string
	description string
	hardness    model.Hardness
	category    string
}

// NewBaseEvaluator 创建基础规则
func NewBaseEvaluator(name, title, description string, hardness model.Hardness, category string) *BaseEvaluator {
	return &BaseEvaluator{
		name:        name,
		title:       title,
		description: description,
		hardness:    hardness,
		category:    category,
	}
}

// Name 返回规则ID
func (e *BaseEvaluator) Name() string { return e.name }

// Title 返回规则显示名称
func (e *BaseEvaluator) Title() string { return e.title }

// Description 返回规则说明
func (e *BaseEvaluator) Description() string { return e.description }

// Hardness 返回规则强度
func (e *BaseEvaluator) Hardness() model.Hardness { return e.hardness }

// Category 返回规则类别
func (e *BaseEvaluator) Category() string { return e.category }

// Evaluate 默认评估实现（子类需覆盖）
func (e *BaseEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	return nil
}

// NewViolation 创建违规结果
func (e *BaseEvaluator) NewViolation(message string, affected constraint.AffectedEntities, metadata map[string]interface{}) constraint.Result {
	return e.NewViolationAs(e.name, e.hardness, message, affected, metadata)
}

// NewViolationAs 以指定ID和强度创建违规结果
func (e *BaseEvaluator) NewViolationAs(ruleID string, hardness model.Hardness, message string, affected constraint.AffectedEntities, metadata map[string]interface{}) constraint.Result {
	severity := constraint.SeverityWarning
	if hardness == model.HardnessHard {
		severity = constraint.SeverityError
	}

	return constraint.Result{
		RuleID:   ruleID,
		RuleName: e.title,
		Hardness: hardness,
		Passed:   false,
		Message:  message,
		Severity: severity,
		Affected: affected,
		Metadata: metadata,
	}
}

// resolve 查找分配关联的员工和班次，任一缺失则跳过
func resolve(ctx *constraint.Context, a *model.Assignment) (*model.Employee, *model.Shift, bool) {
	if a == nil {
		return nil, nil, false
	}
	emp := ctx.GetEmployee(a.EmployeeID)
	shift := ctx.GetShift(a.ShiftID)
	if emp == nil || shift == nil {
		return nil, nil, false
	}
	return emp, shift, true
}

// employeeLabel 员工显示名称
func employeeLabel(emp *model.Employee) string {
	if emp.Name != "" {
		return emp.Name
	}
	if emp.Initials != "" {
		return emp.Initials
	}
	return emp.ID.String()
}
