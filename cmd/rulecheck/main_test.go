package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/constraint/builtin"
	apperrors "github.com/paiban/rostercheck/pkg/errors"
	"github.com/paiban/rostercheck/pkg/validator"
)

const (
	employeeID = "6f1c2a34-0000-4000-8000-000000000001"
	nightID    = "6f1c2a34-0000-4000-8000-0000000000a1"
	earlyID    = "6f1c2a34-0000-4000-8000-0000000000a2"
)

const rosterHead = `
start_date: "2024-03-04"
end_date: "2024-03-10"
employees:
  - id: ` + employeeID + `
    name: Max Weber
    initials: MW
    contract: Facharzt
    weekly_hours: 40
shifts:
  - id: ` + nightID + `
    name: Nachtdienst
    time: "22:00-06:00"
  - id: ` + earlyID + `
    name: Frühdienst
    time: "07:00-15:00"
assignments:
  - employee_id: ` + employeeID + `
    shift_id: ` + nightID + `
    date: "2024-03-04"
`

// 夜班后第二天早班，休息只有 60 分钟
const restConflict = `  - employee_id: ` + employeeID + `
    shift_id: ` + earlyID + `
    date: "2024-03-05"
`

const testConfig = `
cache:
  enabled: true
  ttl: 1m
reactive:
  auto_validate: true
  debounce: 10ms
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := writeTemp(t, "config.yaml", testConfig)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid roster", func(t *testing.T) {
		roster := writeTemp(t, "roster.yaml", rosterHead)
		out, err := run(t, "validate", "--file", roster)
		require.NoError(t, err)

		var result validator.Result
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.True(t, result.IsValid)
		assert.Equal(t, 7, result.Statistics.RulesChecked)
	})

	t.Run("rest violation", func(t *testing.T) {
		roster := writeTemp(t, "roster.yaml", rosterHead+restConflict)
		out, err := run(t, "validate", "--file", roster)
		require.ErrorIs(t, err, errInvalidRoster)

		var result validator.Result
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.False(t, result.IsValid)
		require.Len(t, result.HardViolations, 1)
		assert.Equal(t, builtin.RuleRestPeriod, result.HardViolations[0].RuleID)
	})

	t.Run("text output", func(t *testing.T) {
		roster := writeTemp(t, "roster.yaml", rosterHead+restConflict)
		out, err := run(t, "validate", "--file", roster, "-o", "text")
		require.ErrorIs(t, err, errInvalidRoster)
		assert.True(t, strings.HasPrefix(out, "INVALID"))
		assert.Contains(t, out, builtin.RuleRestPeriod)
	})

	t.Run("rule selection skips rest check", func(t *testing.T) {
		roster := writeTemp(t, "roster.yaml", rosterHead+restConflict)
		_, err := run(t, "validate", "--file", roster, "--rules", builtin.RuleNoDoubleBooking+","+builtin.RuleQualification)
		assert.NoError(t, err)
	})

	t.Run("unknown rule", func(t *testing.T) {
		roster := writeTemp(t, "roster.yaml", rosterHead)
		_, err := run(t, "validate", "--file", roster, "--rules", "NO_SUCH_RULE")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnknownEvaluator, apperrors.GetCode(err))
		assert.Contains(t, err.Error(), "NO_SUCH_RULE")
	})

	t.Run("missing file flag", func(t *testing.T) {
		_, err := run(t, "validate")
		assert.Error(t, err)
	})

	t.Run("bad output format", func(t *testing.T) {
		roster := writeTemp(t, "roster.yaml", rosterHead)
		_, err := run(t, "validate", "--file", roster, "-o", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestCheckAssignmentCommand(t *testing.T) {
	roster := writeTemp(t, "roster.yaml", rosterHead)

	t.Run("conflicting candidate", func(t *testing.T) {
		out, err := run(t, "check-assignment", "--file", roster,
			"--employee", employeeID, "--shift", earlyID, "--date", "2024-03-05")
		require.ErrorIs(t, err, errInvalidRoster)

		var single validator.SingleResult
		require.NoError(t, json.Unmarshal([]byte(out), &single))
		assert.False(t, single.IsValid)
		require.NotEmpty(t, single.Violations)
		assert.Equal(t, builtin.RuleRestPeriod, single.Violations[0].RuleID)
	})

	t.Run("free day", func(t *testing.T) {
		out, err := run(t, "check-assignment", "--file", roster,
			"--employee", employeeID, "--shift", earlyID, "--date", "2024-03-07")
		require.NoError(t, err)
		assert.Contains(t, out, `"is_valid": true`)
	})

	t.Run("bad ids", func(t *testing.T) {
		_, err := run(t, "check-assignment", "--file", roster,
			"--employee", "nope", "--shift", earlyID, "--date", "2024-03-07")
		assert.ErrorContains(t, err, "invalid --employee")

		_, err = run(t, "check-assignment", "--file", roster,
			"--employee", employeeID, "--shift", earlyID, "--date", "07.03.2024")
		assert.ErrorContains(t, err, "invalid --date")
	})
}

func TestRulesCommand(t *testing.T) {
	out, err := run(t, "rules", "--json")
	require.NoError(t, err)

	var descriptors []constraint.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &descriptors))
	require.Len(t, descriptors, 7)
	assert.Equal(t, builtin.RuleRestPeriod, descriptors[0].Name)

	out, err = run(t, "rules")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "RULE"))
	assert.Contains(t, out, builtin.RuleAvailability)
}

// syncBuffer 订阅回调在定时器协程中写入
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchRevalidatesOnChange(t *testing.T) {
	app := &App{}
	require.NoError(t, app.init(writeTemp(t, "config.yaml", testConfig), false))

	roster := writeTemp(t, "roster.yaml", rosterHead)
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.watch(ctx, watchOptions{file: roster, interval: 10 * time.Millisecond, format: "text"}, out)
	}()

	require.Eventually(t, func() bool {
		return strings.HasPrefix(out.String(), "VALID")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(roster, []byte(rosterHead+restConflict), 0o600))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "INVALID")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), builtin.RuleRestPeriod)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchKeepsLastGoodSnapshot(t *testing.T) {
	app := &App{}
	require.NoError(t, app.init(writeTemp(t, "config.yaml", testConfig), false))

	roster := writeTemp(t, "roster.yaml", rosterHead)
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.watch(ctx, watchOptions{file: roster, interval: 10 * time.Millisecond, format: "text"}, out)
	}()

	require.Eventually(t, func() bool {
		return strings.HasPrefix(out.String(), "VALID")
	}, 2*time.Second, 10*time.Millisecond)

	// 无效文件不触发校验
	require.NoError(t, os.WriteFile(roster, []byte("start_date: ["), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, strings.Count(out.String(), "VALID"))

	cancel()
	require.NoError(t, <-done)
}
