// Package constraint 定义校验上下文、规则接口和注册表
package constraint

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/model"
)

// Context 校验上下文
// 规则只读取上下文，不修改其中任何数据
type Context struct {
	// 校验窗口（闭区间）
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	// 输入数据
	Employees   []*model.Employee       `json:"employees"`
	Shifts      []*model.Shift          `json:"shifts"`
	Assignments []*model.Assignment     `json:"assignments"`
	Rules       []*model.SchedulingRule `json:"rules,omitempty"`

	// 可用性数据（可选）
	Availability model.AvailabilityMap `json:"availability,omitempty"`

	// 单个分配校验时的目标分配
	Target *model.Assignment `json:"target,omitempty"`

	// 参考时间，用于入职年限等相对时间判断
	Now time.Time `json:"now"`

	// 索引缓存
	employeeMap       map[uuid.UUID]*model.Employee
	shiftMap          map[uuid.UUID]*model.Shift
	assignmentMap     map[uuid.UUID]*model.Assignment
	assignmentsByEmp  map[uuid.UUID][]*model.Assignment
	assignmentsByDate map[string][]*model.Assignment
}

// NewContext 创建新的校验上下文
func NewContext(startDate, endDate string) *Context {
	return &Context{
		StartDate:         startDate,
		EndDate:           endDate,
		Employees:         make([]*model.Employee, 0),
		Shifts:            make([]*model.Shift, 0),
		Assignments:       make([]*model.Assignment, 0),
		Now:               time.Now(),
		employeeMap:       make(map[uuid.UUID]*model.Employee),
		shiftMap:          make(map[uuid.UUID]*model.Shift),
		assignmentMap:     make(map[uuid.UUID]*model.Assignment),
		assignmentsByEmp:  make(map[uuid.UUID][]*model.Assignment),
		assignmentsByDate: make(map[string][]*model.Assignment),
	}
}

// FromSnapshot 由快照构建上下文
func FromSnapshot(s *model.Snapshot) *Context {
	c := NewContext(s.StartDate, s.EndDate)
	c.SetEmployees(s.Employees)
	c.SetShifts(s.Shifts)
	c.SetAssignments(s.Assignments)
	c.SetRules(s.Rules)
	c.SetAvailability(s.Availability)
	return c
}

// SetEmployees 设置员工列表
func (c *Context) SetEmployees(employees []*model.Employee) {
	c.Employees = employees
	c.employeeMap = make(map[uuid.UUID]*model.Employee, len(employees))
	for _, e := range employees {
		if e != nil {
			c.employeeMap[e.ID] = e
		}
	}
}

// SetShifts 设置班次列表
func (c *Context) SetShifts(shifts []*model.Shift) {
	c.Shifts = shifts
	c.shiftMap = make(map[uuid.UUID]*model.Shift, len(shifts))
	for _, s := range shifts {
		if s != nil {
			c.shiftMap[s.ID] = s
		}
	}
}

// SetAssignments 设置排班分配
func (c *Context) SetAssignments(assignments []*model.Assignment) {
	c.Assignments = assignments
	c.rebuildAssignmentIndexes()
}

// SetRules 设置规则记录
func (c *Context) SetRules(rules []*model.SchedulingRule) {
	c.Rules = rules
}

// SetAvailability 设置可用性数据
func (c *Context) SetAvailability(availability model.AvailabilityMap) {
	c.Availability = availability
}

// SetDateRange 设置校验窗口
func (c *Context) SetDateRange(startDate, endDate string) {
	c.StartDate = startDate
	c.EndDate = endDate
}

// rebuildAssignmentIndexes 重建分配索引
func (c *Context) rebuildAssignmentIndexes() {
	c.assignmentMap = make(map[uuid.UUID]*model.Assignment, len(c.Assignments))
	c.assignmentsByEmp = make(map[uuid.UUID][]*model.Assignment)
	c.assignmentsByDate = make(map[string][]*model.Assignment)
	for _, a := range c.Assignments {
		if a == nil {
			continue
		}
		c.assignmentMap[a.ID] = a
		c.assignmentsByEmp[a.EmployeeID] = append(c.assignmentsByEmp[a.EmployeeID], a)
		c.assignmentsByDate[a.Date] = append(c.assignmentsByDate[a.Date], a)
	}
}

// GetEmployee 获取员工
func (c *Context) GetEmployee(id uuid.UUID) *model.Employee {
	return c.employeeMap[id]
}

// GetShift 获取班次
func (c *Context) GetShift(id uuid.UUID) *model.Shift {
	return c.shiftMap[id]
}

// GetAssignment 获取分配
func (c *Context) GetAssignment(id uuid.UUID) *model.Assignment {
	return c.assignmentMap[id]
}

// GetEmployeeAssignments 获取员工的所有排班
func (c *Context) GetEmployeeAssignments(empID uuid.UUID) []*model.Assignment {
	return c.assignmentsByEmp[empID]
}

// GetDateAssignments 获取某日期的所有排班
func (c *Context) GetDateAssignments(date string) []*model.Assignment {
	return c.assignmentsByDate[date]
}

// InWindow 检查日期是否在校验窗口内
func (c *Context) InWindow(date string) bool {
	return date >= c.StartDate && date <= c.EndDate
}

// Dates 返回校验窗口内的所有日期
func (c *Context) Dates() []string {
	return model.DatesInRange(c.StartDate, c.EndDate)
}

// AssignedEmployeeIDs 返回有排班的员工ID（已排序）
// 设置了目标分配时只返回目标员工
func (c *Context) AssignedEmployeeIDs() []uuid.UUID {
	if c.Target != nil {
		return []uuid.UUID{c.Target.EmployeeID}
	}
	ids := make([]uuid.UUID, 0, len(c.assignmentsByEmp))
	for id := range c.assignmentsByEmp {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// ScopedAssignments 返回需要逐条检查的分配
// 设置了目标分配时只返回目标本身
func (c *Context) ScopedAssignments() []*model.Assignment {
	if c.Target != nil {
		return []*model.Assignment{c.Target}
	}
	return c.Assignments
}

// Clone 复制上下文（浅复制数据，重建索引）
func (c *Context) Clone() *Context {
	clone := &Context{
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		Employees:    c.Employees,
		Shifts:       c.Shifts,
		Rules:        c.Rules,
		Availability: c.Availability,
		Target:       c.Target,
		Now:          c.Now,
		employeeMap:  c.employeeMap,
		shiftMap:     c.shiftMap,
	}
	clone.Assignments = make([]*model.Assignment, len(c.Assignments))
	copy(clone.Assignments, c.Assignments)
	clone.rebuildAssignmentIndexes()
	return clone
}

// WithTarget 返回以目标分配为中心的上下文副本
// 同ID的分配被替换，否则追加
func (c *Context) WithTarget(target *model.Assignment) *Context {
	clone := c.Clone()
	replaced := false
	for i, a := range clone.Assignments {
		if a != nil && a.ID == target.ID {
			clone.Assignments[i] = target
			replaced = true
			break
		}
	}
	if !replaced {
		clone.Assignments = append(clone.Assignments, target)
	}
	clone.Target = target
	clone.rebuildAssignmentIndexes()
	return clone
}
