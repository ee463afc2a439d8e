package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/paiban/rostercheck/internal/snapshotfile"
	"github.com/paiban/rostercheck/pkg/constraint"
	apperrors "github.com/paiban/rostercheck/pkg/errors"
	"github.com/paiban/rostercheck/pkg/logger"
	"github.com/paiban/rostercheck/pkg/model"
	"github.com/paiban/rostercheck/pkg/validator"
)

func validateCmd(app *App) *cobra.Command {
	var (
		file     string
		failFast bool
		hardOnly bool
		rules    []string
		now      string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a whole roster snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if unknown := app.registry.Unknown(rules); len(unknown) > 0 {
				return apperrors.New(apperrors.CodeUnknownEvaluator, "未知规则: "+strings.Join(unknown, ", "))
			}

			v, err := app.newValidator(file, now)
			if err != nil {
				return err
			}

			result := v.ValidateSchedule(validator.Options{
				RuleNames: rules,
				HardOnly:  hardOnly,
				FailFast:  failFast,
			})

			if err := writeReport(cmd.OutOrStdout(), format, result); err != nil {
				return err
			}
			if !result.IsValid {
				return errInvalidRoster
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Roster snapshot file (.yaml, .yml or .json)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first hard violation")
	cmd.Flags().BoolVar(&hardOnly, "hard-only", false, "Run hard rules only and drop soft results")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Comma-separated rule IDs to run (default: all)")
	cmd.Flags().StringVar(&now, "now", "", "Reference date for seniority checks (YYYY-MM-DD, default: today)")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "Output format: json or text")
	cmd.MarkFlagRequired("file")

	return cmd
}

func checkAssignmentCmd(app *App) *cobra.Command {
	var (
		file       string
		employeeID string
		shiftID    string
		date       string
		now        string
	)

	cmd := &cobra.Command{
		Use:   "check-assignment",
		Short: "Check one candidate assignment against a roster snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			empID, err := uuid.Parse(employeeID)
			if err != nil {
				return fmt.Errorf("invalid --employee: %w", err)
			}
			shID, err := uuid.Parse(shiftID)
			if err != nil {
				return fmt.Errorf("invalid --shift: %w", err)
			}
			if _, err := model.ParseDate(date); err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}

			v, err := app.newValidator(file, now)
			if err != nil {
				return err
			}

			candidate := &model.Assignment{EmployeeID: empID, ShiftID: shID, Date: date}
			candidate.ID = uuid.New()
			single := v.ValidateAssignment(candidate).Single()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(single); err != nil {
				return err
			}
			if !single.IsValid {
				return errInvalidRoster
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Roster snapshot file")
	cmd.Flags().StringVar(&employeeID, "employee", "", "Employee ID")
	cmd.Flags().StringVar(&shiftID, "shift", "", "Shift ID")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&now, "now", "", "Reference date for seniority checks (YYYY-MM-DD)")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("employee")
	cmd.MarkFlagRequired("shift")
	cmd.MarkFlagRequired("date")

	return cmd
}

// newValidator 读取快照并创建校验器
func (a *App) newValidator(file, now string) (*validator.Validator, error) {
	snap, err := snapshotfile.Load(file)
	if err != nil {
		return nil, err
	}

	ctx := constraint.FromSnapshot(snap)
	if now != "" {
		t, err := model.ParseDate(now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now: %w", err)
		}
		ctx.Now = t
	}

	a.log.Debug().
		Str("file", file).
		Int("employees", len(snap.Employees)).
		Int("assignments", len(snap.Assignments)).
		Msg("快照已加载")

	return validator.New(a.registry, ctx,
		validator.WithLogger(logger.NewValidationLoggerFrom(a.log)),
	), nil
}

// writeReport 输出校验结果
func writeReport(w io.Writer, format string, result *validator.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "text":
		writeText(w, result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, result *validator.Result) {
	status := "VALID"
	if !result.IsValid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "%s  hard=%d soft=%d rules=%d (%s)\n",
		status,
		result.Statistics.HardCount,
		result.Statistics.SoftCount,
		result.Statistics.RulesChecked,
		result.Duration.Round(time.Microsecond),
	)
	for _, v := range result.HardViolations {
		fmt.Fprintf(w, "  ✗ [%s] %s\n", v.RuleID, v.Message)
	}
	for _, v := range result.SoftViolations {
		fmt.Fprintf(w, "  ! [%s] %s\n", v.RuleID, v.Message)
	}
	if len(result.Statistics.FailedEvaluators) > 0 {
		fmt.Fprintf(w, "  failed evaluators: %s\n", strings.Join(result.Statistics.FailedEvaluators, ", "))
	}
}
