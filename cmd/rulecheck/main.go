// rulecheck 命令行排班规则校验工具
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/paiban/rostercheck/internal/config"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/constraint/builtin"
	"github.com/paiban/rostercheck/pkg/logger"
)

// errInvalidRoster 存在硬约束违规，进程以 1 退出
var errInvalidRoster = errors.New("roster has hard violations")

// App 命令共享的依赖
type App struct {
	cfg      *config.Config
	registry *constraint.Registry
	log      zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalidRoster) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &App{}
	var configPath string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "rulecheck",
		Short:         "Validate rosters against working-time and staffing rules",
		Long:          `Checks a roster snapshot (YAML or JSON) against rest periods, weekly hours, qualifications, double bookings, minimum staffing, weekend distribution and availability.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(configPath, verbose)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Settings file (overrides "+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(validateCmd(app))
	rootCmd.AddCommand(checkAssignmentCmd(app))
	rootCmd.AddCommand(rulesCmd(app))
	rootCmd.AddCommand(watchCmd(app))

	return rootCmd
}

// init 加载配置并构建规则注册表
func (a *App) init(configPath string, verbose bool) error {
	var err error
	if configPath != "" {
		a.cfg, err = config.LoadFromPath(configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 报告写到 stdout，日志只写 stderr
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger.Init(logger.Config{Level: level, Format: "console", Output: "stderr"})
	a.log = logger.Get().With().Str("component", "cli").Logger()

	a.registry = builtin.NewRegistry(a.cfg.Validation)
	return nil
}
