// Package model 定义排班校验引擎的核心数据模型
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout 日期格式 YYYY-MM-DD
const DateLayout = "2006-01-02"

// Hardness 规则强度
type Hardness string

const (
	HardnessHard Hardness = "hard" // 硬约束（违反即排班无效）
	HardnessSoft Hardness = "soft" // 软约束（仅提示）
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID `json:"id" yaml:"id" db:"id"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty" db:"updated_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DateRange 日期范围（闭区间）
type DateRange struct {
	StartDate string `json:"start_date" yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" yaml:"end_date" validate:"required,datetime=2006-01-02"`
}

// Contains 检查日期是否在范围内
func (r DateRange) Contains(date string) bool {
	return date >= r.StartDate && date <= r.EndDate
}

// Dates 返回范围内的所有日期
func (r DateRange) Dates() []string {
	return DatesInRange(r.StartDate, r.EndDate)
}

// ParseDate 解析 YYYY-MM-DD 日期
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式无效 %q: %w", date, err)
	}
	return t, nil
}

// AddDays 日期加减天数，解析失败返回空字符串
func AddDays(date string, days int) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, days).Format(DateLayout)
}

// DaysBetween 返回 to - from 的天数差
func DaysBetween(from, to string) (int, error) {
	f, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours() / 24), nil
}

// DatesInRange 返回闭区间内的所有日期
func DatesInRange(start, end string) []string {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil
	}

	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// ISOWeekKey 返回日期所在的 ISO 周标识，如 2024-W03
func ISOWeekKey(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// WeekStart 返回日期所在周的周一
// 周六和随后的周日落在同一个周一之下
func WeekStart(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(DateLayout)
}

// IsWeekend 判断日期是否为周末
func IsWeekend(date string) bool {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	weekday := t.Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// MonthKey 返回日期所在月份 YYYY-MM
func MonthKey(date string) string {
	if len(date) < 7 {
		return ""
	}
	return date[:7]
}

// DayOfMonth 返回日期中的日
func DayOfMonth(date string) int {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0
	}
	return t.Day()
}
