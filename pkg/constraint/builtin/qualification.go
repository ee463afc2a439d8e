package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// 资质缺失标签
const (
	labelOberarzt          = "Oberarzt"
	labelFacharzt          = "Facharzt"
	labelABS               = "ABS-Zertifikat"
	labelNotfall           = "Notfallzertifikat"
	labelFirstYearResident = "kein Assistenzarzt im 1. Jahr"
)

// 资质标签
const (
	QualificationABS     = "ABS"
	QualificationNotfall = "Notfallmedizin"
)

// qualificationCheck 单项资质检查
type qualificationCheck struct {
	label string
	ok    func(emp *model.Employee, now time.Time) bool
}

var (
	checkOberarzt = qualificationCheck{labelOberarzt, func(e *model.Employee, _ time.Time) bool {
		return e.ContractIn(model.ContractChefarzt, model.ContractOberarzt)
	}}
	checkFacharzt = qualificationCheck{labelFacharzt, func(e *model.Employee, _ time.Time) bool {
		return e.ContractIn(model.ContractChefarzt, model.ContractOberarzt, model.ContractFacharzt)
	}}
	checkABS = qualificationCheck{labelABS, func(e *model.Employee, _ time.Time) bool {
		return e.HasQualification(QualificationABS)
	}}
	checkNotfall = qualificationCheck{labelNotfall, func(e *model.Employee, _ time.Time) bool {
		return e.HasQualification(QualificationNotfall)
	}}
	checkFirstYear = qualificationCheck{labelFirstYearResident, func(e *model.Employee, now time.Time) bool {
		return !isFirstYearResident(e, now)
	}}
)

// requirementKeywords 班次要求关键字 -> 检查项
var requirementKeywords = []struct {
	keyword string
	check   qualificationCheck
}{
	{"oberarzt", checkOberarzt},
	{"facharzt", checkFacharzt},
	{"abs-zertifiziert", checkABS},
	{"notfallzertifikat", checkNotfall},
}

// rulePhrases 班次规则文本短语 -> 检查项
var rulePhrases = []struct {
	phrase string
	check  qualificationCheck
}{
	{"nur oberärzte", checkOberarzt},
	{"facharztstandard", checkFacharzt},
	{"abs-zertifikat erforderlich", checkABS},
	{"notarzt erforderlich", checkNotfall},
	{"keine assistenzärzte im 1. jahr", checkFirstYear},
}

// QualificationEvaluator 资质匹配约束
type QualificationEvaluator struct {
	*BaseEvaluator
}

// NewQualificationEvaluator 创建资质匹配规则
func NewQualificationEvaluator() *QualificationEvaluator {
	return &QualificationEvaluator{
		BaseEvaluator: NewBaseEvaluator(
			RuleQualification,
			"资质匹配",
			"员工合同级别和资质必须满足班次要求",
			model.HardnessHard,
			CategoryQualification,
		),
	}
}

// Evaluate 评估整个排班
func (c *QualificationEvaluator) Evaluate(ctx *constraint.Context) []constraint.Result {
	var results []constraint.Result

	for _, a := range ctx.ScopedAssignments() {
		emp, shift, ok := resolve(ctx, a)
		if !ok {
			continue
		}

		missing := MissingRequirements(emp, shift, ctx.Now)
		if len(missing) == 0 {
			continue
		}

		results = append(results, c.NewViolation(
			fmt.Sprintf(
				"员工 %s 不满足班次 %s 的要求: %s",
				employeeLabel(emp), shift.Name, strings.Join(missing, ", "),
			),
			constraint.AffectedEntities{
				EmployeeIDs: []uuid.UUID{emp.ID},
				ShiftIDs:    []uuid.UUID{shift.ID},
				Dates:       []string{a.Date},
			},
			map[string]interface{}{
				"missingRequirements": missing,
				"assignmentId":        a.ID.String(),
			},
		))
	}

	return results
}

// MissingRequirements 返回员工未满足的班次要求（去重，按出现顺序）
func MissingRequirements(emp *model.Employee, shift *model.Shift, now time.Time) []string {
	var checks []qualificationCheck

	for _, req := range shift.Requirements {
		lower := strings.ToLower(req)
		for _, kw := range requirementKeywords {
			if strings.Contains(lower, kw.keyword) {
				checks = append(checks, kw.check)
			}
		}
	}
	for _, rule := range shift.Rules {
		lower := strings.ToLower(rule)
		for _, p := range rulePhrases {
			if strings.Contains(lower, p.phrase) {
				checks = append(checks, p.check)
			}
		}
	}

	var missing []string
	seen := make(map[string]bool)
	for _, chk := range checks {
		if seen[chk.label] || chk.ok(emp, now) {
			continue
		}
		seen[chk.label] = true
		missing = append(missing, chk.label)
	}
	return missing
}

// isFirstYearResident 入职不足一年的助理医师
func isFirstYearResident(emp *model.Employee, now time.Time) bool {
	if emp.Contract != model.ContractAssistenzarzt || emp.StartDate == "" {
		return false
	}
	start, err := model.ParseDate(emp.StartDate)
	if err != nil {
		return false
	}
	return start.After(now.AddDate(-1, 0, 0))
}
