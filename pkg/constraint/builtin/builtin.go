package builtin

import (
	"sync"

	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// Settings 内置规则参数
type Settings struct {
	MinRestMinutes      int      `yaml:"min_rest_minutes" json:"min_rest_minutes" validate:"gte=0"`
	MaxWeeklyHours      float64  `yaml:"max_weekly_hours" json:"max_weekly_hours" validate:"gte=0"`
	MaxWeekendsPerMonth int      `yaml:"max_weekends_per_month" json:"max_weekends_per_month" validate:"gte=0"`
	DefaultShiftMinutes int      `yaml:"default_shift_minutes" json:"default_shift_minutes" validate:"gte=0,lte=1440"`
	AvailableCodes      []string `yaml:"available_codes" json:"available_codes"`
	PartialCodes        []string `yaml:"partial_codes" json:"partial_codes"`
}

// DefaultSettings 返回默认参数
func DefaultSettings() Settings {
	return Settings{
		MinRestMinutes:      DefaultMinRestMinutes,
		MaxWeeklyHours:      DefaultMaxWeeklyHours,
		MaxWeekendsPerMonth: DefaultMaxWeekendsPerMonth,
		DefaultShiftMinutes: model.DefaultShiftMinutes,
		AvailableCodes:      DefaultAvailableCodes,
		PartialCodes:        DefaultPartialCodes,
	}
}

// NewRegistry 按参数构建规则注册表
// 注册顺序即执行顺序
func NewRegistry(s Settings) *constraint.Registry {
	return constraint.NewRegistry(
		NewRestPeriodEvaluator(s.MinRestMinutes),
		NewMaxWeeklyHoursEvaluator(s.MaxWeeklyHours, s.DefaultShiftMinutes),
		NewQualificationEvaluator(),
		NewDoubleBookingEvaluator(),
		NewMinStaffingEvaluator(),
		NewWeekendDistributionEvaluator(s.MaxWeekendsPerMonth),
		NewAvailabilityEvaluator(s.AvailableCodes, s.PartialCodes),
	)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *constraint.Registry
)

// DefaultRegistry 返回进程级只读默认注册表
func DefaultRegistry() *constraint.Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(DefaultSettings())
	})
	return defaultRegistry
}

// SingleAssignmentRules 单个分配校验使用的规则
var SingleAssignmentRules = []string{
	RuleQualification,
	RuleNoDoubleBooking,
	RuleRestPeriod,
	RuleMaxWeeklyHours,
	RuleMaxWeekends,
}

// AssignmentSensitiveRules 分配变更影响的规则
var AssignmentSensitiveRules = []string{
	RuleRestPeriod,
	RuleMaxWeeklyHours,
	RuleNoDoubleBooking,
	RuleMaxWeekends,
}

// ShiftSensitiveRules 班次定义变更影响的规则
var ShiftSensitiveRules = []string{
	RuleQualification,
	RuleMinStaffing,
}
