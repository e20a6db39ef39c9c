package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"pavolctl/internal/adapter/primary/web"
	"pavolctl/internal/config"
	"pavolctl/internal/domain"
	"pavolctl/internal/logging"
	"pavolctl/internal/usecase"
)

var (
	cfgPath   string
	envPath   string
	verbosity int
	dryRun    bool

	cmdHost  string
	cmdPort  int
	httpHost string
	httpPort int
	timeout  time.Duration
	socks5   string
	logLevel string

	// effective configuration, resolved in PersistentPreRunE
	cfg config.Config
)

// NewRootCmd creates the root CLI command.
// This is the primary adapter that translates CLI inputs to use case calls.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pavolctl",
		Short:         "Control the default sink/source volume of a remote PulseAudio server",
		Long:          "Sets volumes over the PulseAudio CLI protocol (TCP) and reads them from the HTTP status page.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	pf.StringVar(&envPath, "env", ".env", "env file with PAVOLCTL_* overrides")
	pf.CountVarP(&verbosity, "verbose", "v", "increase logging (-v, -vv, ... up to 4 times)")
	pf.BoolVar(&dryRun, "dry-run", false, "print commands instead of sending them")
	pf.StringVar(&cmdHost, "cmd-host", "", "command channel host")
	pf.IntVar(&cmdPort, "cmd-port", config.DefaultCommandPort, "command channel port")
	pf.StringVar(&httpHost, "http-host", "", "status page host")
	pf.IntVar(&httpPort, "http-port", config.DefaultStatusPort, "status page port")
	pf.DurationVar(&timeout, "timeout", config.DefaultTimeout, "status fetch / connect timeout")
	pf.StringVar(&socks5, "proxy", "", "SOCKS5 proxy host:port")
	pf.StringVar(&logLevel, "log-level", "", "error|warn|info|debug|trace (-v takes precedence)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		resolved, err := resolveConfig(cmd.Flags())
		if err != nil {
			return err
		}
		cfg = resolved
		if verbosity > 0 {
			logging.SetVerbosity(verbosity)
		} else if err := logging.SetLevelName(cfg.Logging.Level); err != nil {
			return err
		}
		return nil
	}

	cmd.AddCommand(
		newGetCmd(),
		newSetCmd(),
		newWatchCmd(),
		newServeCmd(),
		newConfigCmd(),
		newShellCmd(),
	)

	return cmd
}

// resolveConfig layers defaults, file, env file, environment and changed flags.
func resolveConfig(flags *pflag.FlagSet) (config.Config, error) {
	if err := config.LoadEnvFile(envPath); err != nil {
		return config.Config{}, err
	}
	c, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ApplyEnv(&c, os.Getenv); err != nil {
		return config.Config{}, err
	}

	var o config.FlagOverrides
	if flags.Changed("cmd-host") {
		o.CommandHost = &cmdHost
	}
	if flags.Changed("cmd-port") {
		o.CommandPort = &cmdPort
	}
	if flags.Changed("http-host") {
		o.StatusHost = &httpHost
	}
	if flags.Changed("http-port") {
		o.StatusPort = &httpPort
	}
	if flags.Changed("timeout") {
		o.Timeout = &timeout
	}
	if flags.Changed("proxy") {
		o.SOCKS5 = &socks5
	}
	if flags.Changed("log-level") {
		o.LogLevel = &logLevel
	}
	if f := flags.Lookup("interval"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			o.Interval = &d
		}
	}
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		addr := f.Value.String()
		o.WebAddr = &addr
	}
	o.Apply(&c)

	if err := c.Validate(); err != nil {
		return config.Config{}, err
	}
	return c, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newGetCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the default sink and source volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.uc.Close()

			ctx, stop := signalContext()
			defer stop()

			snap, err := a.uc.GetVolumes(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(snap)
			}
			fmt.Fprintf(out, "sink:   %3.0f%%\nsource: %3.0f%%\n", snap.SinkVolumePercent, snap.SourceVolumePercent)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSetCmd() *cobra.Command {
	var (
		sinkFlag   float64
		sourceFlag float64
		wait       bool
	)
	cmd := &cobra.Command{
		Use:   "set [sink|source PERCENT]",
		Short: "Set the default sink and/or source volume (0-100)",
		Example: `  pavolctl set sink 40
  pavolctl set --sink 66 --source 10`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("expected no arguments or DEVICE PERCENT")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			type target struct {
				class   domain.DeviceClass
				percent float64
			}
			var targets []target

			if len(args) == 2 {
				class, err := domain.ParseDeviceClass(args[0])
				if err != nil {
					return err
				}
				p, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
				if err != nil {
					return fmt.Errorf("invalid percent %q", args[1])
				}
				targets = append(targets, target{class, p})
			}
			if cmd.Flags().Changed("sink") {
				targets = append(targets, target{domain.Sink, sinkFlag})
			}
			if cmd.Flags().Changed("source") {
				targets = append(targets, target{domain.Source, sourceFlag})
			}
			if len(targets) == 0 {
				return errors.New("nothing to set: pass --sink, --source or DEVICE PERCENT")
			}
			for _, t := range targets {
				if err := domain.ValidatePercent(t.percent); err != nil {
					return err
				}
			}

			a, err := newApp(cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.uc.Close()

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
			defer cancel()

			a.uc.Connect()
			if wait {
				if err := a.waitReady(ctx); err != nil {
					return err
				}
			}
			for _, t := range targets {
				if err := a.uc.SetVolume(t.percent, t.class); err != nil {
					return err
				}
			}
			if !wait {
				// Close cancels a pending dial, so let it settle and flush the queue on ready.
				if err := a.waitReady(ctx); err != nil {
					return err
				}
			}
			if err := a.uc.Close(); err != nil {
				return err
			}
			if err := a.sendError(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.dry != nil {
				for _, c := range a.dry.Sent() {
					fmt.Fprintf(out, "dry-run: %s\n", c)
				}
			}
			for _, t := range targets {
				fmt.Fprintf(out, "%s set to %.0f%%\n", t.class, t.percent)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&sinkFlag, "sink", 0, "output volume (0-100)")
	cmd.Flags().Float64Var(&sourceFlag, "source", 0, "input volume (0-100)")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the command connection before queueing commands")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print volume changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.uc.Close()

			ctx, stop := signalContext()
			defer stop()

			out := cmd.OutOrStdout()
			logging.Infof("watching %s every %s", cfg.StatusEndpoint(), cfg.WatchInterval())
			a.uc.Watch(ctx, cfg.WatchInterval(), func(r usecase.VolumesResult) {
				ts := r.At.Format(time.TimeOnly)
				if r.Err != nil {
					fmt.Fprintf(out, "%s error: %v\n", ts, r.Err)
					return
				}
				fmt.Fprintf(out, "%s sink=%.0f%% source=%.0f%%\n", ts, r.Snapshot.SinkVolumePercent, r.Snapshot.SourceVolumePercent)
			})
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", config.DefaultWatchInterval, "polling interval")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON/WebSocket API and keep the command connection open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.uc.Close()

			ctx, stop := signalContext()
			defer stop()

			logger := logging.Logger()
			hub := web.NewHub(a.uc, cfg.WatchInterval(), logger)
			srv := web.NewServer(a.uc, hub, cfg.Web.Addr, logger)

			a.uc.Connect()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				hub.Run(gctx)
				return nil
			})
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case sc := <-a.states:
						if sc.State == domain.StateFailed {
							logging.Warnf("command channel: %v (volume changes will fail until restart)", sc.Err)
						} else {
							logging.Infof("command channel %s", sc.State)
						}
					}
				}
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				fmt.Fprintf(cmd.OutOrStdout(), "pavolctl API running at http://%s\n", cfg.Web.Addr)
				if err := srv.Start(); err != nil {
					return err
				}
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "HTTP listen address")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(cfgPath, cfg, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", config.ExpandPath(cfgPath))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
