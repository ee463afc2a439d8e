// Package model 定义排班校验引擎的核心数据模型
package model

// AppliesToAll 规则适用于所有对象
const AppliesToAll = "all"

// SchedulingRule 排班规则（描述性数据，由界面展示）
type SchedulingRule struct {
	BaseModel   `yaml:",inline"`
	Hardness    Hardness `json:"type" yaml:"type" db:"hardness"`
	Description string   `json:"description" yaml:"description" db:"description"`
	Category    string   `json:"category" yaml:"category" db:"category"`
	AppliesTo   string   `json:"applies_to" yaml:"applies_to" db:"applies_to"` // all 或员工/班次ID
	Active      bool     `json:"active" yaml:"active" db:"active"`
	Weight      *int     `json:"weight,omitempty" yaml:"weight,omitempty" db:"weight"` // 仅软约束
}

// IsHard 是否为硬约束
func (r *SchedulingRule) IsHard() bool {
	return r.Hardness == HardnessHard
}

// AvailabilityMap 员工可用性：员工简称 -> 日 -> 状态码
type AvailabilityMap map[string]map[int]string

// Code 查询某员工某日的状态码
func (m AvailabilityMap) Code(initials string, day int) (string, bool) {
	days, ok := m[initials]
	if !ok {
		return "", false
	}
	code, ok := days[day]
	return code, ok && code != ""
}

// Snapshot 一次校验所需的完整输入
type Snapshot struct {
	DateRange    `yaml:",inline"`
	Employees    []*Employee       `json:"employees" yaml:"employees" validate:"dive"`
	Shifts       []*Shift          `json:"shifts" yaml:"shifts" validate:"dive"`
	Assignments  []*Assignment     `json:"assignments" yaml:"assignments" validate:"dive"`
	Rules        []*SchedulingRule `json:"rules,omitempty" yaml:"rules,omitempty"`
	Availability AvailabilityMap   `json:"availability,omitempty" yaml:"availability,omitempty"`
}
