// Package model 定义排班校验引擎的核心数据模型
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultShiftMinutes 未给出时长时的默认班次时长（分钟）
const DefaultShiftMinutes = 480

// 灵活班次的时间标记，不参与时间计算
var flexibleTimeSentinels = map[string]bool{
	"":               true,
	"-":              true,
	"flexibel":       true,
	"variabel":       true,
	"nach absprache": true,
}

// Shift 班次定义
type Shift struct {
	BaseModel       `yaml:",inline"`
	Name            string   `json:"name" yaml:"name" db:"name"`
	Category        string   `json:"category" yaml:"category" db:"category"` // 科室/站点
	Time            string   `json:"time" yaml:"time" db:"time"`             // HH:MM-HH:MM 或灵活标记
	DurationMinutes int      `json:"duration_minutes,omitempty" yaml:"duration_minutes,omitempty" db:"duration_minutes"`
	Requirements    []string `json:"requirements,omitempty" yaml:"requirements,omitempty" db:"requirements"`
	Rules           []string `json:"rules,omitempty" yaml:"rules,omitempty" db:"rules"` // 自由文本规则提示
}

// TimeSpec 解析后的班次时间
type TimeSpec struct {
	StartMinutes int // 当日零点起的分钟数
	EndMinutes   int
	Flexible     bool
}

// Overnight 结束时间小于开始时间即跨天
func (t TimeSpec) Overnight() bool {
	return !t.Flexible && t.EndMinutes < t.StartMinutes
}

// DurationMinutes 按时间段计算时长
func (t TimeSpec) DurationMinutes() int {
	if t.Flexible {
		return 0
	}
	if t.Overnight() {
		return t.EndMinutes + 24*60 - t.StartMinutes
	}
	return t.EndMinutes - t.StartMinutes
}

// IsFlexibleTime 判断时间标记是否为灵活班次
func IsFlexibleTime(spec string) bool {
	return flexibleTimeSentinels[strings.ToLower(strings.TrimSpace(spec))]
}

// ParseTimeSpec 解析 "HH:MM-HH:MM" 格式
func ParseTimeSpec(spec string) (TimeSpec, error) {
	if IsFlexibleTime(spec) {
		return TimeSpec{Flexible: true}, nil
	}

	parts := strings.Split(strings.TrimSpace(spec), "-")
	if len(parts) != 2 {
		return TimeSpec{}, fmt.Errorf("班次时间格式无效: %q", spec)
	}

	start, err := parseClock(parts[0])
	if err != nil {
		return TimeSpec{}, err
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return TimeSpec{}, err
	}

	return TimeSpec{StartMinutes: start, EndMinutes: end}, nil
}

// parseClock 解析 HH:MM 为分钟数
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hm := strings.Split(s, ":")
	if len(hm) != 2 {
		return 0, fmt.Errorf("时间格式无效: %q", s)
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("小时无效: %q", s)
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("分钟无效: %q", s)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("时间超出范围: %q", s)
	}
	return h*60 + m, nil
}

// ParseTime 解析班次时间
func (s *Shift) ParseTime() (TimeSpec, error) {
	return ParseTimeSpec(s.Time)
}

// IsFlexible 是否为灵活班次
func (s *Shift) IsFlexible() bool {
	return IsFlexibleTime(s.Time)
}

// EffectiveDurationMinutes 返回班次时长：显式时长优先，其次按时间段推算，最后使用默认值
func (s *Shift) EffectiveDurationMinutes(defaultMinutes int) int {
	if s.DurationMinutes > 0 {
		return s.DurationMinutes
	}
	if spec, err := s.ParseTime(); err == nil && !spec.Flexible {
		if d := spec.DurationMinutes(); d > 0 {
			return d
		}
	}
	return defaultMinutes
}

// Assignment 排班分配
type Assignment struct {
	BaseModel  `yaml:",inline"`
	EmployeeID uuid.UUID `json:"employee_id" yaml:"employee_id" db:"employee_id"`
	ShiftID    uuid.UUID `json:"shift_id" yaml:"shift_id" db:"shift_id"`
	Date       string    `json:"date" yaml:"date" db:"date"`
	Station    string    `json:"station,omitempty" yaml:"station,omitempty" db:"station"`
	Locked     bool      `json:"locked" yaml:"locked" db:"locked"` // 手工锁定，外部生成器不得改动

	// 调用方维护的违规标注，校验引擎不写入
	Violations []string `json:"violations,omitempty" yaml:"violations,omitempty" db:"-"`
}

// IsOnDate 检查分配是否在指定日期
func (a *Assignment) IsOnDate(date string) bool {
	return a.Date == date
}
