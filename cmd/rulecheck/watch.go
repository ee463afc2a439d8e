package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/paiban/rostercheck/internal/metrics"
	"github.com/paiban/rostercheck/internal/snapshotfile"
	"github.com/paiban/rostercheck/pkg/cache"
	"github.com/paiban/rostercheck/pkg/constraint"
	"github.com/paiban/rostercheck/pkg/logger"
	"github.com/paiban/rostercheck/pkg/model"
	"github.com/paiban/rostercheck/pkg/reactive"
	"github.com/paiban/rostercheck/pkg/validator"
)

// watchOptions watch 命令参数
type watchOptions struct {
	file        string
	interval    time.Duration
	debounce    time.Duration
	metricsAddr string
	format      string
	hardOnly    bool
}

func watchCmd(app *App) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate a roster file whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.watch(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Roster snapshot file")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "Polling interval")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "Debounce before re-validating (default from config)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve metrics on this address, e.g. :9090")
	cmd.Flags().StringVarP(&opts.format, "output", "o", "text", "Output format: json or text")
	cmd.Flags().BoolVar(&opts.hardOnly, "hard-only", false, "Run hard rules only")
	cmd.MarkFlagRequired("file")

	return cmd
}

// watch 轮询文件，变化时把差异交给控制器，直到 ctx 结束
func (a *App) watch(ctx context.Context, opts watchOptions, out io.Writer) error {
	raw, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}
	snap, err := snapshotfile.Load(opts.file)
	if err != nil {
		return err
	}

	validatorOpts := []validator.Option{
		validator.WithLogger(logger.NewValidationLoggerFrom(a.log)),
	}

	var resultCache *cache.Cache
	if a.cfg.Cache.Enabled {
		resultCache = cache.New(a.cfg.Cache.TTL)
		validatorOpts = append(validatorOpts, validator.WithCache(resultCache))
	}

	var reg *metrics.MetricsRegistry
	if opts.metricsAddr != "" {
		reg = metrics.GetRegistry()
		validatorOpts = append(validatorOpts, validator.WithObserver(metrics.NewValidationObserver(reg)))
		if resultCache != nil {
			reg.WatchCache(resultCache)
		}
	}

	v := validator.New(a.registry, constraint.FromSnapshot(snap), validatorOpts...)

	debounce := a.cfg.Reactive.Debounce
	if opts.debounce > 0 {
		debounce = opts.debounce
	}
	controller := reactive.NewController(v,
		reactive.WithDebounce(debounce),
		reactive.WithAutoValidate(a.cfg.Reactive.AutoValidate),
		reactive.WithValidateOptions(validator.Options{HardOnly: opts.hardOnly}),
		reactive.WithLogger(a.log),
	)
	defer controller.Close()

	var outMu sync.Mutex
	var reportErr error
	unsubscribe := controller.Subscribe(func(result *validator.Result) {
		outMu.Lock()
		defer outMu.Unlock()
		if err := writeReport(out, opts.format, result); err != nil && reportErr == nil {
			reportErr = err
		}
	})
	defer unsubscribe()

	controller.Validate()

	g, ctx := errgroup.WithContext(ctx)

	if reg != nil {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           metricsMux(a.cfg.Metrics.Path, reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.log.Info().Str("addr", opts.metricsAddr).Msg("指标服务已启动")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()

		prev := snap
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			data, err := os.ReadFile(opts.file)
			if err != nil {
				a.log.Warn().Err(err).Str("file", opts.file).Msg("读取快照失败")
				continue
			}
			if bytes.Equal(data, raw) {
				continue
			}
			raw = data

			next, err := snapshotfile.Load(opts.file)
			if err != nil {
				a.log.Warn().Err(err).Str("file", opts.file).Msg("快照无效，保留上一版本")
				continue
			}
			prev = a.apply(controller, prev, next)
		}
	})

	err = g.Wait()

	outMu.Lock()
	defer outMu.Unlock()
	if err != nil {
		return err
	}
	return reportErr
}

// apply 把新旧快照的差异通知控制器，返回新的基准快照
func (a *App) apply(controller *reactive.Controller, prev, next *model.Snapshot) *model.Snapshot {
	update := snapshotfile.Diff(prev, next)
	if update.IsEmpty() {
		return prev
	}
	a.log.Debug().Str("change", string(update.Mutation())).Msg("快照已变更")
	controller.Notify(reactive.Change{Update: update})
	return next
}

func metricsMux(path string, reg *metrics.MetricsRegistry) http.Handler {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+path, reg.Handler())
	return mux
}
