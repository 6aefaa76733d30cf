// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/config"
	"github.com/xkilldash9x/inmate-bot/internal/observability"
	"github.com/xkilldash9x/inmate-bot/internal/service"
)

const envPrefix = "INMATEBOT"

// errUnsuccessful marks a run that finished without an error but also without a
// prepared payment page. The result text has already been printed.
var errUnsuccessful = errors.New("run was not successful")

// app holds the state shared by the commands of one root command instance.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	factory service.SessionFactory
}

// NewRootCommand creates the root command backed by real browser sessions.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCmd(service.NewSessionFactory())
	return root
}

// newRootCmd builds an isolated command tree. Tests pass their own session factory.
func newRootCmd(factory service.SessionFactory) (*cobra.Command, *app) {
	a := &app{v: viper.New(), factory: factory}

	root := &cobra.Command{
		Use:           "inmate-bot",
		Short:         "inmate-bot signs in to Access Corrections and prepares a deposit for a record.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initializeConfig(); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(a.v)
			if err != nil {
				// The fallback logger still lets the failure be reported.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "inmate-bot"})
				return err
			}
			a.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting inmate-bot", zap.String("version", Version))
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.Bool("headless", true, "run Chrome without a window")
	flags.String("remote-url", "", "attach to a running Chrome at this DevTools URL instead of launching one")
	_ = a.v.BindPFlag("browser.headless", flags.Lookup("headless"))
	_ = a.v.BindPFlag("browser.remote_url", flags.Lookup("remote-url"))

	root.AddCommand(
		newRunCmd(a),
		newDiscoverCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root, a
}

// initializeConfig reads the config file, if any, and enables environment overrides.
func (a *app) initializeConfig() error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment only.
	}
	return nil
}

// Execute runs the root command with ctx, which should be cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	switch {
	case err == nil, errors.Is(err, errUnsuccessful):
	case errors.Is(err, context.Canceled):
		observability.GetLogger().Warn("Command aborted.")
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
