// Package snapshotfile 读取 YAML/JSON 格式的排班快照文件
package snapshotfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	apperrors "github.com/paiban/rostercheck/pkg/errors"
	"github.com/paiban/rostercheck/pkg/model"
	rulevalidator "github.com/paiban/rostercheck/pkg/validator"
)

var validate = validator.New()

// Load 读取并校验快照文件，按扩展名选择格式
func Load(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap model.Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &snap)
	default:
		err = yaml.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "快照文件解析失败").WithDetails(path)
	}

	if err := Validate(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate 校验快照并补齐缺失的分配ID
func Validate(snap *model.Snapshot) error {
	if err := validate.Struct(snap); err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidationFail, "快照校验失败")
	}
	if snap.StartDate > snap.EndDate {
		return apperrors.InvalidDateRange(snap.StartDate, snap.EndDate)
	}
	for _, a := range snap.Assignments {
		if a != nil && a.ID == uuid.Nil {
			a.ID = deterministicID(a)
		}
	}
	return nil
}

// deterministicID 同一文件重复读取时ID保持不变
func deterministicID(a *model.Assignment) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(a.EmployeeID.String()+"|"+a.ShiftID.String()+"|"+a.Date))
}

// Diff 比较两份快照，返回只包含变化部分的上下文更新
func Diff(prev, next *model.Snapshot) rulevalidator.ContextUpdate {
	var u rulevalidator.ContextUpdate
	if prev == nil {
		return rulevalidator.ContextUpdate{
			Employees:    nonNil(next.Employees),
			Shifts:       nonNil(next.Shifts),
			Assignments:  nonNil(next.Assignments),
			Rules:        nonNil(next.Rules),
			Availability: next.Availability,
			StartDate:    next.StartDate,
			EndDate:      next.EndDate,
		}
	}

	if !reflect.DeepEqual(prev.Employees, next.Employees) {
		u.Employees = nonNil(next.Employees)
	}
	if !reflect.DeepEqual(prev.Shifts, next.Shifts) {
		u.Shifts = nonNil(next.Shifts)
	}
	if !reflect.DeepEqual(prev.Assignments, next.Assignments) {
		u.Assignments = nonNil(next.Assignments)
	}
	if !reflect.DeepEqual(prev.Rules, next.Rules) {
		u.Rules = nonNil(next.Rules)
	}
	if !reflect.DeepEqual(prev.Availability, next.Availability) {
		u.Availability = next.Availability
		if u.Availability == nil {
			u.Availability = model.AvailabilityMap{}
		}
	}
	if prev.StartDate != next.StartDate {
		u.StartDate = next.StartDate
	}
	if prev.EndDate != next.EndDate {
		u.EndDate = next.EndDate
	}
	return u
}

// nonNil 空列表也要表示“已变更”
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
