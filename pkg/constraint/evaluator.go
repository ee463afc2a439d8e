package constraint

import "github.com/paiban/rostercheck/pkg/model"

// Evaluator 规则评估器接口
type Evaluator interface {
	// Name 返回规则ID
	Name() string

	// Description 返回规则说明
	Description() string

	// Hardness 返回规则强度 hard/soft/both
	Hardness() model.Hardness

	// Category 返回规则类别
	Category() string

	// Evaluate 评估上下文，只返回违规结果
	Evaluate(ctx *Context) []Result
}

// Descriptor 规则描述信息
type Descriptor struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Hardness    model.Hardness `json:"type" yaml:"type"`
	Category    string         `json:"category" yaml:"category"`
}

// Describe 生成规则描述
func Describe(e Evaluator) Descriptor {
	return Descriptor{
		Name:        e.Name(),
		Description: e.Description(),
		Hardness:    e.Hardness(),
		Category:    e.Category(),
	}
}
