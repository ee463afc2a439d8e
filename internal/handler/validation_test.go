package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rostercheck/pkg/constraint/builtin"
	"github.com/paiban/rostercheck/pkg/errors"
	"github.com/paiban/rostercheck/pkg/model"
	rulevalidator "github.com/paiban/rostercheck/pkg/validator"
)

type rosterFixture struct {
	emp   *model.Employee
	night *model.Shift
	early *model.Shift
}

func newRosterFixture() rosterFixture {
	emp := &model.Employee{Name: "Max Weber", Initials: "MW", Contract: model.ContractFacharzt, WeeklyHours: 40}
	emp.ID = uuid.New()
	night := &model.Shift{Name: "Nachtdienst", Time: "22:00-06:00"}
	night.ID = uuid.New()
	early := &model.Shift{Name: "Frühdienst", Time: "07:00-15:00"}
	early.ID = uuid.New()
	return rosterFixture{emp: emp, night: night, early: early}
}

func (f rosterFixture) snapshot(assignments ...*model.Assignment) model.Snapshot {
	return model.Snapshot{
		DateRange:   model.DateRange{StartDate: "2024-03-04", EndDate: "2024-03-05"},
		Employees:   []*model.Employee{f.emp},
		Shifts:      []*model.Shift{f.night, f.early},
		Assignments: assignments,
	}
}

func (f rosterFixture) assign(shift *model.Shift, date string) *model.Assignment {
	return &model.Assignment{EmployeeID: f.emp.ID, ShiftID: shift.ID, Date: date}
}

type observerFunc func(*rulevalidator.Result)

func (f observerFunc) ObserveValidation(r *rulevalidator.Result) { f(r) }

func newTestMux(opts ...HandlerOption) *http.ServeMux {
	clock := func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	h := NewValidationHandler(nil, append([]HandlerOption{WithClock(clock)}, opts...)...)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

type errorBody struct {
	Error   bool                   `json:"error"`
	Code    string                 `json:"code"`
	Details string                 `json:"details"`
	Fields  map[string]interface{} `json:"fields"`
}

func TestValidateSchedule(t *testing.T) {
	f := newRosterFixture()
	var observed int
	mux := newTestMux(WithObserver(observerFunc(func(*rulevalidator.Result) { observed++ })))

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/schedule/validate", ValidateRequest{
		Snapshot: f.snapshot(f.assign(f.night, "2024-03-04"), f.assign(f.early, "2024-03-05")),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result rulevalidator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.IsValid)
	require.Len(t, result.HardViolations, 1)
	assert.Equal(t, builtin.RuleRestPeriod, result.HardViolations[0].RuleID)
	assert.Equal(t, 60, int(result.HardViolations[0].Metadata["actualRestMinutes"].(float64)))
	assert.Equal(t, 1, observed)
}

func TestValidateSchedule_RuleSelection(t *testing.T) {
	f := newRosterFixture()
	mux := newTestMux()

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/schedule/validate", ValidateRequest{
		Snapshot: f.snapshot(f.assign(f.night, "2024-03-04"), f.assign(f.early, "2024-03-05")),
		Options:  rulevalidator.Options{RuleNames: []string{builtin.RuleNoDoubleBooking}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result rulevalidator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.IsValid)
	assert.Equal(t, 1, result.Statistics.RulesChecked)
}

func TestValidateSchedule_BadRequests(t *testing.T) {
	f := newRosterFixture()
	mux := newTestMux()

	tests := []struct {
		name     string
		body     interface{}
		raw      string
		wantCode errors.Code
		status   int
	}{
		{
			name:     "malformed json",
			raw:      "{",
			wantCode: errors.CodeInvalidInput,
			status:   http.StatusBadRequest,
		},
		{
			name:     "missing dates",
			body:     map[string]interface{}{"employees": []interface{}{}},
			wantCode: errors.CodeValidationFail,
			status:   http.StatusBadRequest,
		},
		{
			name: "reversed range",
			body: ValidateRequest{Snapshot: model.Snapshot{
				DateRange: model.DateRange{StartDate: "2024-03-10", EndDate: "2024-03-01"},
			}},
			wantCode: errors.CodeInvalidDateRange,
			status:   http.StatusBadRequest,
		},
		{
			name: "unknown rule",
			body: ValidateRequest{
				Snapshot: f.snapshot(),
				Options:  rulevalidator.Options{RuleNames: []string{"NO_SUCH_RULE"}},
			},
			wantCode: errors.CodeUnknownEvaluator,
			status:   http.StatusBadRequest,
		},
		{
			name:     "bad now",
			body:     ValidateRequest{Snapshot: f.snapshot(), Now: "01.03.2024"},
			wantCode: errors.CodeValidationFail,
			status:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.raw != "" {
				rec = httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/schedule/validate", bytes.NewBufferString(tt.raw)))
			} else {
				rec = doJSON(t, mux, http.MethodPost, "/api/v1/schedule/validate", tt.body)
			}

			assert.Equal(t, tt.status, rec.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Error)
			assert.Equal(t, string(tt.wantCode), body.Code)
		})
	}
}

func TestValidateSchedule_MethodNotAllowed(t *testing.T) {
	rec := doJSON(t, newTestMux(), http.MethodGet, "/api/v1/schedule/validate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestValidateAssignment(t *testing.T) {
	f := newRosterFixture()
	mux := newTestMux()

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/schedule/validate-assignment", ValidateAssignmentRequest{
		Snapshot:   f.snapshot(f.assign(f.night, "2024-03-04")),
		Assignment: f.assign(f.early, "2024-03-05"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var single rulevalidator.SingleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &single))
	assert.False(t, single.IsValid)
	require.Len(t, single.Violations, 1)
	assert.Equal(t, builtin.RuleRestPeriod, single.Violations[0].RuleID)
	assert.Empty(t, single.Warnings)
}

func TestValidateAssignment_MissingFields(t *testing.T) {
	f := newRosterFixture()
	mux := newTestMux()

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/schedule/validate-assignment", ValidateAssignmentRequest{
		Snapshot:   f.snapshot(),
		Assignment: &model.Assignment{Date: "2024-03-05"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(errors.CodeValidationFail), body.Code)
	assert.Contains(t, body.Fields, "assignment.employee_id")
	assert.Contains(t, body.Fields, "assignment.shift_id")

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/schedule/validate-assignment", ValidateAssignmentRequest{
		Snapshot: f.snapshot(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuleLibrary(t *testing.T) {
	rec := doJSON(t, newTestMux(), http.MethodGet, "/api/v1/rules/library", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var lib RuleLibraryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lib))
	require.Len(t, lib.Rules, builtin.DefaultRegistry().Len())
	assert.Equal(t, builtin.RuleRestPeriod, lib.Rules[0].Name)
	assert.Equal(t, builtin.SingleAssignmentRules, lib.SingleAssignmentRules)
}

type stubLoader struct {
	snap  *model.Snapshot
	err   error
	orgID uuid.UUID
	start string
	end   string
}

func (s *stubLoader) Load(_ context.Context, orgID uuid.UUID, start, end string) (*model.Snapshot, error) {
	s.orgID, s.start, s.end = orgID, start, end
	return s.snap, s.err
}

func TestValidateOrgSchedule(t *testing.T) {
	f := newRosterFixture()
	snap := f.snapshot(f.assign(f.night, "2024-03-04"), f.assign(f.early, "2024-03-05"))
	loader := &stubLoader{snap: &snap}
	mux := newTestMux(WithSnapshotLoader(loader))
	org := uuid.New()

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/orgs/"+org.String()+"/schedule/validate?start=2024-03-04&end=2024-03-05&hard_only=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, org, loader.orgID)
	assert.Equal(t, "2024-03-04", loader.start)

	var result rulevalidator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.HardViolations, 1)
	assert.Empty(t, result.SoftViolations)

	t.Run("bad org id", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/orgs/not-a-uuid/schedule/validate?start=2024-03-04&end=2024-03-05", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing range", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/orgs/"+org.String()+"/schedule/validate", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown rule", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/orgs/"+org.String()+"/schedule/validate?start=2024-03-04&end=2024-03-05&rules=NOPE", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("database error", func(t *testing.T) {
		failing := &stubLoader{err: errors.New(errors.CodeDatabaseError, "db down")}
		rec := doJSON(t, newTestMux(WithSnapshotLoader(failing)), http.MethodGet,
			"/api/v1/orgs/"+org.String()+"/schedule/validate?start=2024-03-04&end=2024-03-05", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestValidateOrgSchedule_NoDatabase(t *testing.T) {
	rec := doJSON(t, newTestMux(), http.MethodGet, "/api/v1/orgs/"+uuid.NewString()+"/schedule/validate?start=2024-03-04&end=2024-03-05", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
