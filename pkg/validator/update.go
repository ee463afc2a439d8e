package validator

import (
	"time"

	"github.com/paiban/rostercheck/pkg/cache"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// ContextUpdate 上下文的部分更新，nil 或空字符串表示保持不变
type ContextUpdate struct {
	Employees    []*model.Employee       `json:"employees,omitempty"`
	Shifts       []*model.Shift          `json:"shifts,omitempty"`
	Assignments  []*model.Assignment     `json:"assignments,omitempty"`
	Rules        []*model.SchedulingRule `json:"rules,omitempty"`
	Availability model.AvailabilityMap   `json:"availability,omitempty"`
	StartDate    string                  `json:"start_date,omitempty"`
	EndDate      string                  `json:"end_date,omitempty"`
	Now          time.Time               `json:"now"`
}

// IsEmpty 是否没有任何变更
func (u ContextUpdate) IsEmpty() bool {
	return u.Employees == nil && u.Shifts == nil && u.Assignments == nil && u.Rules == nil &&
		u.Availability == nil && u.StartDate == "" && u.EndDate == "" && u.Now.IsZero()
}

// Mutation 变更类型：只改分配或只改班次时可局部失效，其余情况全部失效
func (u ContextUpdate) Mutation() cache.Mutation {
	onlyAssignments := u.Assignments != nil && u.Employees == nil && u.Shifts == nil && u.Rules == nil &&
		u.Availability == nil && u.StartDate == "" && u.EndDate == ""
	onlyShifts := u.Shifts != nil && u.Assignments == nil && u.Employees == nil && u.Rules == nil &&
		u.Availability == nil && u.StartDate == "" && u.EndDate == ""

	switch {
	case onlyAssignments:
		return cache.MutationAssignments
	case onlyShifts:
		return cache.MutationShift
	case u.Rules != nil:
		return cache.MutationRule
	default:
		return cache.MutationOther
	}
}

// Apply 在副本上应用更新并重建索引
func (u ContextUpdate) Apply(ctx *constraint.Context) *constraint.Context {
	next := ctx.Clone()
	next.Target = nil
	if u.Employees != nil {
		next.SetEmployees(u.Employees)
	}
	if u.Shifts != nil {
		next.SetShifts(u.Shifts)
	}
	if u.Assignments != nil {
		next.SetAssignments(u.Assignments)
	}
	if u.Rules != nil {
		next.SetRules(u.Rules)
	}
	if u.Availability != nil {
		next.SetAvailability(u.Availability)
	}
	if u.StartDate != "" || u.EndDate != "" {
		start, end := next.StartDate, next.EndDate
		if u.StartDate != "" {
			start = u.StartDate
		}
		if u.EndDate != "" {
			end = u.EndDate
		}
		next.SetDateRange(start, end)
	}
	if !u.Now.IsZero() {
		next.Now = u.Now
	}
	return next
}
