// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/constraint/builtin"
	"github.com/paiban/rostercheck/pkg/errors"
	"github.com/paiban/rostercheck/pkg/logger"
	"github.com/paiban/rostercheck/pkg/model"
	rulevalidator "github.com/paiban/rostercheck/pkg/validator"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 8 << 20

// SnapshotLoader 按组织读取排班快照
type SnapshotLoader interface {
	Load(ctx context.Context, orgID uuid.UUID, start, end string) (*model.Snapshot, error)
}

// ValidationHandler 排班校验处理器
type ValidationHandler struct {
	registry  *constraint.Registry
	snapshots SnapshotLoader
	observer  rulevalidator.Observer
	validate  *validator.Validate
	clock     func() time.Time
}

// HandlerOption 处理器选项
type HandlerOption func(*ValidationHandler)

// WithSnapshotLoader 启用按组织校验接口
func WithSnapshotLoader(l SnapshotLoader) HandlerOption {
	return func(h *ValidationHandler) {
		h.snapshots = l
	}
}

// WithObserver 指定校验完成回调
func WithObserver(o rulevalidator.Observer) HandlerOption {
	return func(h *ValidationHandler) {
		h.observer = o
	}
}

// WithClock 指定当前时间来源
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *ValidationHandler) {
		h.clock = clock
	}
}

// NewValidationHandler 创建校验处理器，registry 为空时使用默认注册表
func NewValidationHandler(registry *constraint.Registry, opts ...HandlerOption) *ValidationHandler {
	if registry == nil {
		registry = builtin.DefaultRegistry()
	}
	h := &ValidationHandler{
		registry: registry,
		validate: validator.New(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register 注册路由
func (h *ValidationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/schedule/validate", h.ValidateSchedule)
	mux.HandleFunc("POST /api/v1/schedule/validate-assignment", h.ValidateAssignment)
	mux.HandleFunc("GET /api/v1/rules/library", h.RuleLibrary)
	mux.HandleFunc("GET /api/v1/orgs/{org}/schedule/validate", h.ValidateOrgSchedule)
}

// ValidateRequest 排班校验请求
type ValidateRequest struct {
	model.Snapshot
	Options rulevalidator.Options `json:"options"`
	// 资历判断的参考日期，默认当天
	Now string `json:"now,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ValidateAssignmentRequest 单个分配校验请求
type ValidateAssignmentRequest struct {
	model.Snapshot
	Assignment *model.Assignment `json:"assignment" validate:"required"`
	Now        string            `json:"now,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RuleLibraryResponse 规则库响应
type RuleLibraryResponse struct {
	Rules                 []constraint.Descriptor `json:"rules"`
	SingleAssignmentRules []string                `json:"single_assignment_rules"`
}

// ValidateSchedule 校验整个排班
func (h *ValidationHandler) ValidateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if appErr := h.decode(w, r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if appErr := h.checkSnapshot(&req.Snapshot); appErr != nil {
		respondError(w, appErr)
		return
	}
	if unknown := h.registry.Unknown(req.Options.RuleNames); len(unknown) > 0 {
		respondError(w, errors.New(errors.CodeUnknownEvaluator, "未知规则").
			WithDetails(strings.Join(unknown, ", ")))
		return
	}

	ctx, appErr := h.buildContext(&req.Snapshot, req.Now)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	result := h.newValidator(r, ctx).ValidateSchedule(req.Options)
	respondJSON(w, http.StatusOK, result)
}

// ValidateAssignment 校验单个候选分配
func (h *ValidationHandler) ValidateAssignment(w http.ResponseWriter, r *http.Request) {
	var req ValidateAssignmentRequest
	if appErr := h.decode(w, r, &req); appErr != nil {
		respondError(w, appErr)
		return
	}
	if appErr := h.checkSnapshot(&req.Snapshot); appErr != nil {
		respondError(w, appErr)
		return
	}

	target := req.Assignment
	verrs := &errors.ValidationErrors{}
	if target.EmployeeID == uuid.Nil {
		verrs.Add("assignment.employee_id", "不能为空")
	}
	if target.ShiftID == uuid.Nil {
		verrs.Add("assignment.shift_id", "不能为空")
	}
	if _, err := model.ParseDate(target.Date); err != nil {
		verrs.Add("assignment.date", "日期格式应为 YYYY-MM-DD")
	}
	if verrs.HasErrors() {
		respondError(w, verrs.ToAppError())
		return
	}
	if target.ID == uuid.Nil {
		target.ID = uuid.New()
	}

	ctx, appErr := h.buildContext(&req.Snapshot, req.Now)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	result := h.newValidator(r, ctx).ValidateAssignment(target)
	respondJSON(w, http.StatusOK, result.Single())
}

// RuleLibrary 返回已注册的规则
func (h *ValidationHandler) RuleLibrary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RuleLibraryResponse{
		Rules:                 h.registry.Descriptors(),
		SingleAssignmentRules: builtin.SingleAssignmentRules,
	})
}

// ValidateOrgSchedule 从数据库读取组织排班后校验
func (h *ValidationHandler) ValidateOrgSchedule(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		respondError(w, errors.New(errors.CodeNotFound, "未配置数据库，按组织校验不可用"))
		return
	}

	orgID, err := uuid.Parse(r.PathValue("org"))
	if err != nil {
		respondError(w, errors.InvalidInput("org", "组织ID格式无效"))
		return
	}
	r = r.WithContext(logger.ContextWithOrgID(r.Context(), orgID.String()))

	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if appErr := checkRange(start, end); appErr != nil {
		respondError(w, appErr)
		return
	}

	opts := rulevalidator.Options{
		HardOnly: q.Get("hard_only") == "true",
		FailFast: q.Get("fail_fast") == "true",
	}
	if rules := q.Get("rules"); rules != "" {
		opts.RuleNames = strings.Split(rules, ",")
		if unknown := h.registry.Unknown(opts.RuleNames); len(unknown) > 0 {
			respondError(w, errors.New(errors.CodeUnknownEvaluator, "未知规则").
				WithDetails(strings.Join(unknown, ", ")))
			return
		}
	}

	snap, err := h.snapshots.Load(r.Context(), orgID, start, end)
	if err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Msg("读取排班快照失败")
		respondError(w, errors.From(err))
		return
	}

	ctx, appErr := h.buildContext(snap, q.Get("now"))
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	respondJSON(w, http.StatusOK, h.newValidator(r, ctx).ValidateSchedule(opts))
}

// decode 解析并校验请求体
func (h *ValidationHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) *errors.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	if err := h.validate.Struct(dst); err != nil {
		return toAppError(err)
	}
	return nil
}

// checkSnapshot 校验日期范围并补齐缺失的分配ID
func (h *ValidationHandler) checkSnapshot(s *model.Snapshot) *errors.AppError {
	if appErr := checkRange(s.StartDate, s.EndDate); appErr != nil {
		return appErr
	}
	for _, a := range s.Assignments {
		if a != nil && a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
	}
	return nil
}

func (h *ValidationHandler) buildContext(s *model.Snapshot, now string) (*constraint.Context, *errors.AppError) {
	ctx := constraint.FromSnapshot(s)
	ctx.Now = h.clock()
	if now != "" {
		t, err := model.ParseDate(now)
		if err != nil {
			return nil, errors.InvalidInput("now", "日期格式应为 YYYY-MM-DD")
		}
		ctx.Now = t
	}
	return ctx, nil
}

func (h *ValidationHandler) newValidator(r *http.Request, ctx *constraint.Context) *rulevalidator.Validator {
	opts := []rulevalidator.Option{
		rulevalidator.WithLogger(logger.NewValidationLoggerFrom(*logger.WithContext(r.Context()))),
	}
	if h.observer != nil {
		opts = append(opts, rulevalidator.WithObserver(h.observer))
	}
	return rulevalidator.New(h.registry, ctx, opts...)
}

// checkRange 校验日期范围
func checkRange(start, end string) *errors.AppError {
	verrs := &errors.ValidationErrors{}
	if _, err := model.ParseDate(start); err != nil {
		verrs.Add("start_date", "日期格式应为 YYYY-MM-DD")
	}
	if _, err := model.ParseDate(end); err != nil {
		verrs.Add("end_date", "日期格式应为 YYYY-MM-DD")
	}
	if verrs.HasErrors() {
		return verrs.ToAppError()
	}
	if start > end {
		return errors.InvalidDateRange(start, end)
	}
	return nil
}

// toAppError 把结构体校验错误转为统一错误
func toAppError(err error) *errors.AppError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, errors.CodeInvalidInput, "请求校验失败")
	}
	out := &errors.ValidationErrors{}
	for _, fe := range verrs {
		out.Add(fe.Namespace(), fmt.Sprintf("不满足 %s", fe.Tag()))
	}
	return out.ToAppError()
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}
