package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zsiec/avtranscode/internal/config"
	"github.com/zsiec/avtranscode/internal/profile"
)

var version = "dev"

// app carries what every subcommand needs once flags and config are
// resolved.
type app struct {
	v          *viper.Viper
	configFile string
	debug      bool
	cfg        *config.Config
	log        *slog.Logger
	loader     *profile.Loader
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("avtranscode failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "avtranscode",
		Short:         "Rewrap and transcode audio/video streams",
		Long:          `avtranscode builds output files from streams of input files: streams are rewrapped as they are or transcoded with a profile, and can be delayed or extended with generated silence or black frames.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (default ./avtranscode.yaml or $HOME/.avtranscode/avtranscode.yaml)")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	flags.String("profiles-dir", "", "Directory of user profiles (yaml, json or toml)")
	_ = a.v.BindPFlag("profiles_dir", flags.Lookup("profiles-dir"))

	root.AddCommand(
		newTranscodeCommand(a),
		newProbeCommand(a),
		newProfilesCommand(a),
		newBatchCommand(a),
		newConcatCommand(a),
	)
	return root
}

// setup loads the config, installs the logger and loads the profiles.
func (a *app) setup() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if a.debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.log)

	a.loader = profile.NewLoader(a.log)
	if cfg.ProfilesDir != "" {
		n, err := a.loader.LoadFromDir(cfg.ProfilesDir)
		if err != nil {
			return fmt.Errorf("loading profiles: %w", err)
		}
		a.log.Debug("user profiles loaded", "dir", cfg.ProfilesDir, "count", n)
	}
	return nil
}
