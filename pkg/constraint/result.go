package constraint

import (
	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/model"
)

// 违规级别
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// HardnessBoth 同时产生硬约束和软约束结果的规则
const HardnessBoth model.Hardness = "both"

// AffectedEntities 违规涉及的实体
type AffectedEntities struct {
	EmployeeIDs []uuid.UUID `json:"employee_ids,omitempty" yaml:"employee_ids,omitempty"`
	ShiftIDs    []uuid.UUID `json:"shift_ids,omitempty" yaml:"shift_ids,omitempty"`
	Dates       []string    `json:"dates,omitempty" yaml:"dates,omitempty"`
}

// Result 单条违规结果
type Result struct {
	RuleID   string                 `json:"rule_id" yaml:"rule_id"`
	RuleName string                 `json:"rule_name" yaml:"rule_name"`
	Hardness model.Hardness         `json:"type" yaml:"type"`
	Passed   bool                   `json:"passed" yaml:"passed"`
	Message  string                 `json:"message" yaml:"message"`
	Severity string                 `json:"severity" yaml:"severity"` // error/warning
	Affected AffectedEntities       `json:"affected" yaml:"affected"`
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// IsHard 是否为硬约束违规
func (r *Result) IsHard() bool {
	return r.Hardness == model.HardnessHard
}

// AffectsEmployee 检查是否涉及某员工
func (r *Result) AffectsEmployee(id uuid.UUID) bool {
	for _, e := range r.Affected.EmployeeIDs {
		if e == id {
			return true
		}
	}
	return false
}

// AffectsDate 检查是否涉及某日期
func (r *Result) AffectsDate(date string) bool {
	for _, d := range r.Affected.Dates {
		if d == date {
			return true
		}
	}
	return false
}
