package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schoolcoord/internal/core"
	"schoolcoord/internal/i18n"
	"schoolcoord/pkg/domain"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "schoolcoord",
		Short: "Coordinate animator staffing across schools",
		Long: `schoolcoord tracks animator and student counts for École A, École B and
École C, checks each school against the ratio of one animator per eight
children and suggests which school can lend animators to a school in deficit.

Storage is selected with SCHOOLCOORD_LOCAL_DRIVER (memory, sqlite, blob) and
remote sync with SCHOOLCOORD_REMOTE_DRIVER (postgres, nats, s3).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "output format: text, json or yaml")
	root.PersistentFlags().StringVar(&a.locale, "locale", "", "message locale (fr-FR or en-US, default from SCHOOLCOORD_LOCALE)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging on stderr")

	root.AddCommand(newStatusCmd(a), newSetCmd(a), newResetCmd(a), newWatchCmd(a))
	return root
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show each school's status and the current recommendation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			reg, n := s.service.Registry().State()
			return s.renderer.State(reg, n)
		},
	}
}

var fieldAliases = map[string]domain.Field{
	"animators": domain.FieldAnimatorCount,
	"students":  domain.FieldStudentCount,
}

func parseField(raw string) (domain.Field, error) {
	if f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return f, nil
	}
	return domain.ParseField(raw)
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <school> <field> <value>",
		Short: "Set one counter of one school and save",
		Long: `Set animatorCount (alias animators) or studentCount (alias students) of a
school. The school is its full name or its letter (A, B, C). Values that are
not whole numbers, or are negative, are stored as 0.`,
		Example: `  schoolcoord set A students 10
  schoolcoord set "École B" animatorCount 2`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := domain.ParseSchoolName(args[0])
			if err != nil {
				return err
			}
			field, err := parseField(args[1])
			if err != nil {
				return err
			}
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			if _, err := s.service.SetField(name, field, args[2]); err != nil {
				return err
			}
			return a.saveAndRender(cmd.Context(), s)
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset [school]",
		Short: "Zero one school, or every school with --all, and save",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("reset needs exactly one of <school> or --all")
			}
			var name domain.SchoolName
			if !all {
				parsed, err := domain.ParseSchoolName(args[0])
				if err != nil {
					return err
				}
				name = parsed
			}
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			if all {
				s.service.ResetAll()
			} else if _, err := s.service.ResetSchool(name); err != nil {
				return err
			}
			return a.saveAndRender(cmd.Context(), s)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reset every school")
	return cmd
}

// saveAndRender prints the edited state even when the save fails, then
// reports the failure.
func (a *app) saveAndRender(ctx context.Context, s *session) error {
	saveErr := s.service.Save(ctx)
	reg, n := s.service.Registry().State()
	if err := s.renderer.State(reg, n); err != nil {
		return err
	}
	if saveErr != nil {
		_ = s.renderer.Line(i18n.KeySaveFailed, saveErr)
		return saveErr
	}
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the registry, reloading periodically and applying external updates",
		Long: `watch prints the current state, then prints it again whenever it changes.
The snapshot is reloaded every --interval (default SCHOOLCOORD_REFRESH_INTERVAL,
10m) and updates from the remote store are applied as they arrive. When
SCHOOLCOORD_METRICS_ADDR is set, Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.watch(cmd.Context(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh interval (overrides SCHOOLCOORD_REFRESH_INTERVAL)")
	return cmd
}

func (a *app) watch(ctx context.Context, interval time.Duration) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if interval <= 0 {
		interval = s.cfg.RefreshInterval
	}

	lastReg, lastN := s.service.Registry().State()
	if err := s.renderer.State(lastReg, lastN); err != nil {
		return err
	}
	changes := make(chan struct{}, 1)
	s.service.Registry().OnChange(func(domain.Registry, domain.Notification) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	unsubscribe, err := s.service.Subscribe(ctx)
	if err != nil {
		s.logger.Warn("live updates disabled", zap.Error(err))
	}
	defer unsubscribe()

	var ln net.Listener
	if s.cfg.MetricsAddr != "" {
		ln, err = net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(watchCtx)
	refresher := core.NewRefresher(s.service, interval, core.WithRefreshLogger(s.logger.Named("refresher")))
	if err := refresher.Start(gctx); err != nil {
		if ln != nil {
			_ = ln.Close()
		}
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		return refresher.Stop()
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-changes:
				reg, n := s.service.Registry().State()
				if reg == lastReg && n == lastN {
					continue
				}
				lastReg, lastN = reg, n
				if err := s.renderer.State(reg, n); err != nil {
					return err
				}
			}
		}
	})
	if ln != nil {
		srv := newMetricsServer(s.cfg.MetricsAddr, a.metrics)
		s.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	// Goroutines must be done before the deferred storage close.
	if err := s.renderer.Line(i18n.KeyWatchStarted, interval); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	err = g.Wait()
	_ = s.renderer.Line(i18n.KeyWatchStopped)
	return err
}

func newMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
