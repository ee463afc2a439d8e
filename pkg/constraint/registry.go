package constraint

import "github.com/paiban/rostercheck/pkg/model"

// Registry 规则注册表
// 构建后只读，可在多个校验器之间共享
type Registry struct {
	evaluators []Evaluator
	byName     map[string]int
}

// NewRegistry 创建规则注册表，注册顺序即执行顺序
// 同名规则后注册者原位替换先注册者
func NewRegistry(evaluators ...Evaluator) *Registry {
	r := &Registry{
		evaluators: make([]Evaluator, 0, len(evaluators)),
		byName:     make(map[string]int, len(evaluators)),
	}
	for _, e := range evaluators {
		if e == nil {
			continue
		}
		if i, ok := r.byName[e.Name()]; ok {
			r.evaluators[i] = e
			continue
		}
		r.byName[e.Name()] = len(r.evaluators)
		r.evaluators = append(r.evaluators, e)
	}
	return r
}

// All 获取所有规则
func (r *Registry) All() []Evaluator {
	result := make([]Evaluator, len(r.evaluators))
	copy(result, r.evaluators)
	return result
}

// Get 按名称获取规则
func (r *Registry) Get(name string) (Evaluator, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.evaluators[i], true
}

// Names 返回所有规则名称
func (r *Registry) Names() []string {
	names := make([]string, len(r.evaluators))
	for i, e := range r.evaluators {
		names[i] = e.Name()
	}
	return names
}

// ByCategory 按类别获取规则
func (r *Registry) ByCategory(category string) []Evaluator {
	return r.filter(func(e Evaluator) bool { return e.Category() == category })
}

// Hard 获取硬约束规则（含同时产生两类结果的规则）
func (r *Registry) Hard() []Evaluator {
	return r.filter(func(e Evaluator) bool {
		return e.Hardness() == model.HardnessHard || e.Hardness() == HardnessBoth
	})
}

// Soft 获取软约束规则（含同时产生两类结果的规则）
func (r *Registry) Soft() []Evaluator {
	return r.filter(func(e Evaluator) bool {
		return e.Hardness() == model.HardnessSoft || e.Hardness() == HardnessBoth
	})
}

// Select 按名称选择规则，保持注册顺序，未知名称忽略
func (r *Registry) Select(names []string) []Evaluator {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	return r.filter(func(e Evaluator) bool { return wanted[e.Name()] })
}

// Unknown 返回不在注册表中的名称
func (r *Registry) Unknown(names []string) []string {
	var unknown []string
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	return unknown
}

// Descriptors 返回所有规则的描述信息
func (r *Registry) Descriptors() []Descriptor {
	result := make([]Descriptor, len(r.evaluators))
	for i, e := range r.evaluators {
		result[i] = Describe(e)
	}
	return result
}

// Len 规则数量
func (r *Registry) Len() int {
	return len(r.evaluators)
}

func (r *Registry) filter(keep func(Evaluator) bool) []Evaluator {
	var result []Evaluator
	for _, e := range r.evaluators {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}
