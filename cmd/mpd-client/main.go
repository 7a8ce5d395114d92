package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fpang/missing-person-client/internal/app"
	"github.com/fpang/missing-person-client/internal/cli"
	"github.com/fpang/missing-person-client/internal/config"
	"github.com/fpang/missing-person-client/internal/logging"
	"github.com/fpang/missing-person-client/internal/metrics"
	"github.com/fpang/missing-person-client/internal/render"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI flags
var (
	configFlag  string
	envFileFlag string
)

// v holds flag bindings; config.Load layers file, .env and environment
// under them.
var v = viper.New()

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "mpd-client",
	Short: "Client for the missing-person video detection service",
	Long: `mpd-client registers missing persons, searches uploaded videos for them and
lists past detections, talking to the detection service's HTTP API.

Settings come from flags, MPD_* environment variables, a .env file and an
optional YAML config file, in that order of precedence.

Examples:
  mpd-client health
  mpd-client persons
  mpd-client register --name "Ada Lovelace" --image ./ada.jpg
  mpd-client detect --person 7 --video ./cctv.mp4
  mpd-client detections --on-error skip
  mpd-client download detections/v_d1.mp4 -o d1.mp4
  mpd-client shell  # Interactive mode`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "YAML config file")
	pf.StringVar(&envFileFlag, "env-file", config.DefaultEnvFile, "dotenv file loaded when present")
	pf.String("api-url", "", "detection service origin (e.g. http://localhost:8000)")
	pf.Duration("timeout", 0, "request timeout including uploads")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.Bool("metrics", false, "write per-request metric records to stderr")

	mustBind("api.url", "api-url")
	mustBind("api.timeout", "timeout")
	mustBind("log.level", "log-level")
	mustBind("metrics.enabled", "metrics")

	rootCmd.AddCommand(healthCmd, personsCmd, registerCmd, detectCmd, detectionsCmd, downloadCmd, shellCmd)
}

func mustBind(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitUsage)
		}
		log.Error().Err(err).Msg("Command failed")
		os.Exit(cli.ExitCode(err))
	}
}

// usageError marks invalid invocations.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// setup loads the configuration and wires the client for one command.
func setup(cmd *cobra.Command) (*app.App, error) {
	start := time.Now()

	cfg, err := config.Load(v, configFlag, envFileFlag)
	if err != nil {
		return nil, usageError{msg: err.Error()}
	}

	logging.Init(cfg.Log.Level)
	if cfg.Metrics.Enabled {
		metrics.SetOutput(os.Stderr)
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, usageError{msg: err.Error()}
	}

	logging.NewStartupLogger(cmd.Name()).
		Version(version).
		CommitHash(commitHash).
		Endpoint("api", cfg.API.URL).
		Timing("apiTimeout", cfg.API.Timeout).
		Timing("notifyDelay", cfg.Notify.Delay).
		Timing("progressInterval", cfg.Progress.Interval).
		Timing("revealDelay", cfg.Progress.RevealDelay).
		Feature("metrics", cfg.Metrics.Enabled).
		Feature("token", cfg.API.Token != "").
		Config("aggregateOnError", cfg.Aggregate.OnError).
		Config("aggregateConcurrency", fmt.Sprint(cfg.Aggregate.Concurrency)).
		InitDuration(time.Since(start)).
		Log()

	return a, nil
}

// printScreen writes the current screen to stdout.
func printScreen(a *app.App) {
	if err := render.WriteText(os.Stdout, a.Screen()); err != nil {
		log.Warn().Err(err).Msg("Failed to render screen")
	}
}
