package builtin

import (
	"time"

	"github.com/google/uuid"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/model"
)

// fixture 测试用排班数据
type fixture struct {
	start, end   string
	now          time.Time
	employees    []*model.Employee
	shifts       []*model.Shift
	assignments  []*model.Assignment
	availability model.AvailabilityMap
}

func newFixture(start, end string) *fixture {
	return &fixture{
		start: start,
		end:   end,
		now:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) employee(name, contract string, qualifications ...string) *model.Employee {
	e := &model.Employee{
		BaseModel:      model.NewBaseModel(),
		Name:           name,
		Initials:       name[:2],
		Contract:       contract,
		WeeklyHours:    40,
		Qualifications: qualifications,
	}
	f.employees = append(f.employees, e)
	return e
}

func (f *fixture) shift(name, timeSpec string, requirements ...string) *model.Shift {
	s := &model.Shift{
		BaseModel:    model.NewBaseModel(),
		Name:         name,
		Category:     "Innere",
		Time:         timeSpec,
		Requirements: requirements,
	}
	f.shifts = append(f.shifts, s)
	return s
}

func (f *fixture) assign(emp *model.Employee, shift *model.Shift, date string) *model.Assignment {
	a := &model.Assignment{
		BaseModel:  model.NewBaseModel(),
		EmployeeID: emp.ID,
		ShiftID:    shift.ID,
		Date:       date,
	}
	f.assignments = append(f.assignments, a)
	return a
}

func (f *fixture) context() *constraint.Context {
	ctx := constraint.NewContext(f.start, f.end)
	ctx.Now = f.now
	ctx.SetEmployees(f.employees)
	ctx.SetShifts(f.shifts)
	ctx.SetAssignments(f.assignments)
	ctx.SetAvailability(f.availability)
	return ctx
}

// danglingAssignment 引用不存在的员工和班次
func danglingAssignment(date string) *model.Assignment {
	return &model.Assignment{
		BaseModel:  model.NewBaseModel(),
		EmployeeID: uuid.New(),
		ShiftID:    uuid.New(),
		Date:       date,
	}
}
