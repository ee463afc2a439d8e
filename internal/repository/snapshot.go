package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "github.com/paiban/rostercheck/pkg/errors"
	"github.com/paiban/rostercheck/pkg/model"
)

const (
	selectEmployees = `
		SELECT id, name, initials, contract, weekly_hours, qualifications,
			COALESCE(to_char(start_date, 'YYYY-MM-DD'), '')
		FROM employees
		WHERE org_id = $1 AND deleted_at IS NULL
		ORDER BY name, id
	`

	selectShifts = `
		SELECT id, name, category, time, duration_minutes, requirements, rules
		FROM shifts
		WHERE org_id = $1 AND deleted_at IS NULL
		ORDER BY name, id
	`

	selectAssignments = `
		SELECT id, employee_id, shift_id, to_char(date, 'YYYY-MM-DD'), COALESCE(station, ''), locked
		FROM assignments
		WHERE org_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, employee_id, shift_id
	`

	selectRules = `
		SELECT id, hardness, description, category, applies_to, active, weight
		FROM scheduling_rules
		WHERE org_id = $1 AND active = TRUE
		ORDER BY category, id
	`

	selectAvailability = `
		SELECT initials, to_char(date, 'YYYY-MM-DD'), code
		FROM availability
		WHERE org_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, initials
	`
)

// SnapshotRepository 读取一次校验所需的全部输入
type SnapshotRepository struct {
	db ReadOnlyRunner
}

// NewSnapshotRepository 创建快照仓储
func NewSnapshotRepository(db ReadOnlyRunner) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load 在同一个只读事务中读取员工、班次、分配、规则和可用性
// 分配向前后各扩展一天，以便检查窗口边界上的休息时间
func (r *SnapshotRepository) Load(ctx context.Context, orgID uuid.UUID, start, end string) (*model.Snapshot, error) {
	from, to, err := widenWindow(start, end)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{DateRange: model.DateRange{StartDate: start, EndDate: end}}
	err = r.db.ReadOnly(ctx, func(tx DB) error {
		if snap.Employees, err = loadEmployees(ctx, tx, orgID); err != nil {
			return err
		}
		if snap.Shifts, err = loadShifts(ctx, tx, orgID); err != nil {
			return err
		}
		if snap.Assignments, err = loadAssignments(ctx, tx, orgID, from, to); err != nil {
			return err
		}
		if snap.Rules, err = loadRules(ctx, tx, orgID); err != nil {
			return err
		}
		snap.Availability, err = loadAvailability(ctx, tx, orgID, start, end)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取排班快照失败")
	}
	return snap, nil
}

// widenWindow 校验日期范围并返回扩展后的查询区间
func widenWindow(start, end string) (string, string, error) {
	if _, err := model.ParseDate(start); err != nil {
		return "", "", apperrors.InvalidDateRange(start, end)
	}
	if _, err := model.ParseDate(end); err != nil {
		return "", "", apperrors.InvalidDateRange(start, end)
	}
	if start > end {
		return "", "", apperrors.InvalidDateRange(start, end)
	}
	return model.AddDays(start, -1), model.AddDays(end, 1), nil
}

func loadEmployees(ctx context.Context, db DB, orgID uuid.UUID) ([]*model.Employee, error) {
	rows, err := db.QueryContext(ctx, selectEmployees, orgID)
	if err != nil {
		return nil, fmt.Errorf("查询员工失败: %w", err)
	}
	defer rows.Close()

	var employees []*model.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func scanEmployee(s Scanner) (*model.Employee, error) {
	e := &model.Employee{}
	var qualifications []string
	if err := s.Scan(
		&e.ID, &e.Name, &e.Initials, &e.Contract, &e.WeeklyHours,
		pq.Array(&qualifications), &e.StartDate,
	); err != nil {
		return nil, fmt.Errorf("扫描员工失败: %w", err)
	}
	e.Qualifications = qualifications
	return e, nil
}

func loadShifts(ctx context.Context, db DB, orgID uuid.UUID) ([]*model.Shift, error) {
	rows, err := db.QueryContext(ctx, selectShifts, orgID)
	if err != nil {
		return nil, fmt.Errorf("查询班次失败: %w", err)
	}
	defer rows.Close()

	var shifts []*model.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func scanShift(s Scanner) (*model.Shift, error) {
	shift := &model.Shift{}
	var duration sql.NullInt64
	var requirements, rules []string
	if err := s.Scan(
		&shift.ID, &shift.Name, &shift.Category, &shift.Time, &duration,
		pq.Array(&requirements), pq.Array(&rules),
	); err != nil {
		return nil, fmt.Errorf("扫描班次失败: %w", err)
	}
	if duration.Valid {
		shift.DurationMinutes = int(duration.Int64)
	}
	shift.Requirements = requirements
	shift.Rules = rules
	return shift, nil
}

func loadAssignments(ctx context.Context, db DB, orgID uuid.UUID, from, to string) ([]*model.Assignment, error) {
	rows, err := db.QueryContext(ctx, selectAssignments, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("查询排班分配失败: %w", err)
	}
	defer rows.Close()

	var assignments []*model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanAssignment(s Scanner) (*model.Assignment, error) {
	a := &model.Assignment{}
	if err := s.Scan(&a.ID, &a.EmployeeID, &a.ShiftID, &a.Date, &a.Station, &a.Locked); err != nil {
		return nil, fmt.Errorf("扫描排班分配失败: %w", err)
	}
	return a, nil
}

func loadRules(ctx context.Context, db DB, orgID uuid.UUID) ([]*model.SchedulingRule, error) {
	rows, err := db.QueryContext(ctx, selectRules, orgID)
	if err != nil {
		return nil, fmt.Errorf("查询规则失败: %w", err)
	}
	defer rows.Close()

	var rules []*model.SchedulingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(s Scanner) (*model.SchedulingRule, error) {
	rule := &model.SchedulingRule{}
	var hardness string
	var weight sql.NullInt64
	if err := s.Scan(
		&rule.ID, &hardness, &rule.Description, &rule.Category,
		&rule.AppliesTo, &rule.Active, &weight,
	); err != nil {
		return nil, fmt.Errorf("扫描规则失败: %w", err)
	}
	rule.Hardness = model.Hardness(hardness)
	if rule.AppliesTo == "" {
		rule.AppliesTo = model.AppliesToAll
	}
	// 权重只对软约束有意义
	if weight.Valid && !rule.IsHard() {
		w := int(weight.Int64)
		rule.Weight = &w
	}
	return rule, nil
}

// availabilityRow 可用性表的一行
type availabilityRow struct {
	Initials string
	Date     string
	Code     string
}

func loadAvailability(ctx context.Context, db DB, orgID uuid.UUID, start, end string) (model.AvailabilityMap, error) {
	rows, err := db.QueryContext(ctx, selectAvailability, orgID, start, end)
	if err != nil {
		return nil, fmt.Errorf("查询可用性失败: %w", err)
	}
	defer rows.Close()

	var list []availabilityRow
	for rows.Next() {
		var row availabilityRow
		if err := rows.Scan(&row.Initials, &row.Date, &row.Code); err != nil {
			return nil, fmt.Errorf("扫描可用性失败: %w", err)
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildAvailability(list), nil
}

// buildAvailability 按员工简称和日号组织可用性
// 窗口跨月时同一日号以较晚的日期为准
func buildAvailability(rows []availabilityRow) model.AvailabilityMap {
	if len(rows) == 0 {
		return nil
	}
	m := make(model.AvailabilityMap)
	for _, row := range rows {
		day := model.DayOfMonth(row.Date)
		if day == 0 || row.Initials == "" {
			continue
		}
		days, ok := m[row.Initials]
		if !ok {
			days = make(map[int]string)
			m[row.Initials] = days
		}
		days[day] = row.Code
	}
	return m
}
