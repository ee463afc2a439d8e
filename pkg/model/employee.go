// Package model 定义排班校验引擎的核心数据模型
package model

// 合同级别
const (
	ContractChefarzt      = "Chefarzt"
	ContractOberarzt      = "Oberarzt"
	ContractFacharzt      = "Facharzt"
	ContractAssistenzarzt = "Assistenzarzt"
)

// Employee 员工（由外部花名册维护，校验期间只读）
type Employee struct {
	BaseModel      `yaml:",inline"`
	Name           string   `json:"name" yaml:"name" db:"name"`
	Initials       string   `json:"initials" yaml:"initials" db:"initials"`
	Contract       string   `json:"contract" yaml:"contract" db:"contract"`
	WeeklyHours    float64  `json:"weekly_hours" yaml:"weekly_hours" db:"weekly_hours"`
	Qualifications []string `json:"qualifications,omitempty" yaml:"qualifications,omitempty" db:"qualifications"`
	StartDate      string   `json:"start_date,omitempty" yaml:"start_date,omitempty" db:"start_date"` // 入职日期 YYYY-MM-DD
}

// HasQualification 检查员工是否具备某资质
func (e *Employee) HasQualification(q string) bool {
	for _, s := range e.Qualifications {
		if s == q {
			return true
		}
	}
	return false
}

// ContractIn 检查员工合同级别是否属于给定集合
func (e *Employee) ContractIn(contracts ...string) bool {
	for _, c := range contracts {
		if e.Contract == c {
			return true
		}
	}
	return false
}
