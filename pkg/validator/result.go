package validator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
)

// Options 校验选项
type Options struct {
	RuleNames []string `json:"rules,omitempty"`     // 只运行指定规则，空表示全部
	HardOnly  bool     `json:"hard_only,omitempty"` // 只运行硬约束规则，并丢弃软约束结果
	FailFast  bool     `json:"fail_fast,omitempty"` // 遇到第一个硬约束违规立即返回
}

// Statistics 校验统计
type Statistics struct {
	RulesChecked      int      `json:"rules_checked"`
	TotalViolations   int      `json:"total_violations"`
	HardCount         int      `json:"hard_count"`
	SoftCount         int      `json:"soft_count"`
	AffectedEmployees int      `json:"affected_employees"`
	AffectedDates     int      `json:"affected_dates"`
	FailedEvaluators  []string `json:"failed_evaluators,omitempty"`
}

// Result 校验结果
type Result struct {
	IsValid        bool                `json:"is_valid"`
	HardViolations []constraint.Result `json:"hard_violations"`
	SoftViolations []constraint.Result `json:"soft_violations"`
	Timestamp      time.Time           `json:"timestamp"`
	Duration       time.Duration       `json:"-"`
	DurationMs     float64             `json:"duration_ms"`
	Statistics     Statistics          `json:"statistics"`
}

// newResult 创建空结果
func newResult() *Result {
	return &Result{
		IsValid:        true,
		HardViolations: make([]constraint.Result, 0),
		SoftViolations: make([]constraint.Result, 0),
	}
}

// add 加入一条违规
func (r *Result) add(v constraint.Result) {
	if v.IsHard() {
		r.HardViolations = append(r.HardViolations, v)
		r.IsValid = false
		return
	}
	r.SoftViolations = append(r.SoftViolations, v)
}

// finish 计算统计并记录时间
func (r *Result) finish(rulesChecked int, failed []string, start, end time.Time) {
	employees := make(map[uuid.UUID]bool)
	dates := make(map[string]bool)
	for _, list := range [][]constraint.Result{r.HardViolations, r.SoftViolations} {
		for _, v := range list {
			for _, id := range v.Affected.EmployeeIDs {
				employees[id] = true
			}
			for _, d := range v.Affected.Dates {
				dates[d] = true
			}
		}
	}

	r.IsValid = len(r.HardViolations) == 0
	r.Statistics = Statistics{
		RulesChecked:      rulesChecked,
		TotalViolations:   len(r.HardViolations) + len(r.SoftViolations),
		HardCount:         len(r.HardViolations),
		SoftCount:         len(r.SoftViolations),
		AffectedEmployees: len(employees),
		AffectedDates:     len(dates),
		FailedEvaluators:  failed,
	}
	r.Timestamp = end
	r.Duration = end.Sub(start)
	r.DurationMs = float64(r.Duration.Microseconds()) / 1000
}

// All 返回全部违规（硬约束在前）
func (r *Result) All() []constraint.Result {
	all := make([]constraint.Result, 0, len(r.HardViolations)+len(r.SoftViolations))
	all = append(all, r.HardViolations...)
	return append(all, r.SoftViolations...)
}

// ViolationsByRule 按规则ID统计违规数
func (r *Result) ViolationsByRule() map[string]int {
	counts := make(map[string]int)
	for _, v := range r.All() {
		counts[v.RuleID]++
	}
	return counts
}

// RuleIDs 返回出现过的规则ID（已排序）
func (r *Result) RuleIDs() []string {
	counts := r.ViolationsByRule()
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SingleResult 单个分配的校验结果
type SingleResult struct {
	IsValid    bool                `json:"is_valid"`
	Violations []constraint.Result `json:"violations"`
	Warnings   []constraint.Result `json:"warnings"`
}

// Single 转换为单个分配结果
func (r *Result) Single() SingleResult {
	return SingleResult{
		IsValid:    r.IsValid,
		Violations: r.HardViolations,
		Warnings:   r.SoftViolations,
	}
}
