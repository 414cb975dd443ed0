// armsentry — contact detection for robotic arms from per-joint electrical
// telemetry. No force sensors: a joint pressed against an obstacle shows a
// supply-voltage sag and a current spike, and armsentry watches for both.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardelt/armsentry/internal/config"
	"github.com/ardelt/armsentry/internal/detector"
	"github.com/ardelt/armsentry/internal/monitor"
	"github.com/ardelt/armsentry/internal/server"
	"github.com/ardelt/armsentry/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "v0.1.0"

// newLogger builds the shared logrus logger from config.
func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func main() {
	root := &cobra.Command{
		Use:   "armsentry",
		Short: "armsentry — collision monitoring for robotic arms via joint electrical telemetry",
		Long: `armsentry watches per-joint voltage and current on a robotic arm,
calibrates an electrical baseline, and records collision events whenever the
live readings sag or spike past the configured thresholds. Run it alongside
whatever is actually driving the arm; the two never touch.`,
		SilenceUsage: true,
	}

	// ── monitor subcommand ────────────────────────────────────────────────────
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run a calibrate-then-monitor session against the arm controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// CLI flags override config values.
			if robot, _ := cmd.Flags().GetString("robot"); robot != "" {
				cfg.RobotAddr = robot
			}
			if sens, _ := cmd.Flags().GetString("sensitivity"); sens != "" {
				cfg.Sensitivity = sens
			}
			if push, _ := cmd.Flags().GetString("push"); push != "" {
				cfg.PushAddr = push
			}
			if token, _ := cmd.Flags().GetString("token"); token != "" {
				cfg.PushToken = token
			}
			simulate, _ := cmd.Flags().GetBool("simulate")
			duration, _ := cmd.Flags().GetDuration("duration")

			log := newLogger(cfg)

			th, err := detector.ThresholdsFor(detector.Sensitivity(cfg.Sensitivity))
			if err != nil {
				log.Warn(err)
			}

			var src telemetry.Source
			if simulate {
				log.Info("using simulated telemetry source")
				src = telemetry.NewSimSource(th.JointCount, 0.05,
					telemetry.Contact{Joint: 2, From: 3 * time.Second, Until: 4 * time.Second, VoltageSag: 6.0, CurrentRise: 0.8},
				)
			} else {
				log.Infof("polling robot controller at %s", cfg.RobotAddr)
				src = telemetry.NewClient(cfg.RobotAddr,
					time.Duration(cfg.TelemetryTimeoutMS)*time.Millisecond, log)
			}

			sess := monitor.NewSession(src, th, detector.Sensitivity(cfg.Sensitivity), log)
			sess.Calibrator.Samples = cfg.CalibrationSamples
			sess.Calibrator.Interval = time.Duration(cfg.CalibrationIntervalMS) * time.Millisecond

			if err := sess.Start(context.Background()); err != nil {
				return err
			}

			// Per-joint deviation trace for operators running with log_level=debug.
			statusCtx, stopStatus := context.WithCancel(context.Background())
			defer stopStatus()
			sess.DebugStatus(statusCtx, time.Second)

			// Stop on SIGINT/SIGTERM, or after --duration when set.
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			if duration > 0 {
				select {
				case <-quit:
				case <-time.After(duration):
				}
			} else {
				log.Info("monitoring; press Ctrl+C to stop and write the report")
				<-quit
			}

			sess.Stop()
			rec := sess.Record()

			path, err := monitor.WriteReport(rec, cfg.ReportDir)
			if err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			log.Infof("report written: %s", path)

			if cfg.PushAddr != "" {
				if err := monitor.PushReport(rec, cfg.PushAddr, cfg.PushToken); err != nil {
					log.WithError(err).Warn("report push failed (local report is intact)")
				} else {
					log.Infof("report pushed to %s", cfg.PushAddr)
				}
			}

			fmt.Print(monitor.Summary(rec))
			return nil
		},
	}
	monitorCmd.Flags().String("robot", "", "Arm controller address, e.g. 192.168.10.200")
	monitorCmd.Flags().String("sensitivity", "", "Detection sensitivity: high | normal | low")
	monitorCmd.Flags().Bool("simulate", false, "Use a scripted telemetry simulator instead of hardware")
	monitorCmd.Flags().String("push", "", "Data-plane address of a collection server, e.g. 192.168.1.5:7272")
	monitorCmd.Flags().String("token", "", "Pre-shared collector token for report pushes (overrides config)")
	monitorCmd.Flags().Duration("duration", 0, "Stop automatically after this long (0 = wait for Ctrl+C)")

	// ── server subcommand ─────────────────────────────────────────────────────
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the collection server (dual-port: 7171 control + 7272 ingest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := newLogger(cfg)

			if err := server.InitDB(cfg, log); err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}

			// Inject security settings into server package globals.
			server.SetJWTSecret(cfg.JWTSecret)
			server.SetCollectorToken(cfg.CollectorToken)
			if err := server.SetAdminCredentials(cfg.AdminUser, cfg.AdminPass); err != nil {
				return fmt.Errorf("hashing admin credentials: %w", err)
			}

			gin.SetMode(gin.ReleaseMode)

			// ── Control-plane engine (7171) ────────────────────────────────────
			ctrlEngine := gin.New()
			ctrlEngine.Use(gin.Recovery())
			server.RegisterControlRoutes(ctrlEngine)

			// ── Data-plane engine (7272) ───────────────────────────────────────
			dataEngine := gin.New()
			dataEngine.Use(gin.Recovery())
			server.RegisterDataRoutes(dataEngine)

			ctrlAddr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ControlPort)
			dataAddr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.DataPort)

			log.Infof("control plane (operator API) on http://%s", ctrlAddr)
			log.Infof("data plane (report ingest) on http://%s", dataAddr)

			// Run both servers concurrently; shut down gracefully on SIGINT/SIGTERM.
			ctrlSrv := &http.Server{Addr: ctrlAddr, Handler: ctrlEngine}
			dataSrv := &http.Server{Addr: dataAddr, Handler: dataEngine}

			errCh := make(chan error, 2)
			go func() { errCh <- ctrlSrv.ListenAndServe() }()
			go func() { errCh <- dataSrv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-quit:
				log.Info("shutting down gracefully")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = ctrlSrv.Shutdown(ctx)
				_ = dataSrv.Shutdown(ctx)
				return nil
			}
		},
	}

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print armsentry version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("armsentry %s\n", version)
		},
	}

	root.AddCommand(monitorCmd, serverCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
