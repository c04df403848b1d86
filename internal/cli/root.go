// Package cli wires the scheduler host behind a cobra command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/contacts"
	"github.com/tartampluch/go-birthday-reminders/internal/engine"
)

// RootOptions holds the global flags and what PersistentPreRunE resolved from them.
type RootOptions struct {
	ConfigPath string
	Debug      bool

	// LogOutput replaces stderr as the console log sink.
	LogOutput io.Writer
	// Credentials overrides the OS keyring.
	Credentials CredentialStore
	// Clock overrides the wall clock used for planning.
	Clock engine.Clock

	Settings config.Settings
	closers  []io.Closer
}

// CredentialStore reads and writes contact source passwords.
type CredentialStore interface {
	contacts.Credentials
	SetPassword(user, pass string) error
}

// Close releases what the commands opened, the log file included.
func (o *RootOptions) Close() error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		errs = append(errs, o.closers[i].Close())
	}
	o.closers = nil
	return errors.Join(errs...)
}

func (o *RootOptions) credentials() CredentialStore {
	if o.Credentials != nil {
		return o.Credentials
	}
	return contacts.NewKeyringCredentials()
}

func (o *RootOptions) clock() engine.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return engine.RealClock{}
}

// NewRootCommand creates the command tree. The caller closes opts.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           config.CmdRoot,
		Short:         config.DescRoot,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if closer := setupLogging(opts.Debug, opts.LogOutput); closer != nil {
				opts.closers = append(opts.closers, closer)
			}
			logStartupInfo()

			if err := config.LoadDotEnv(config.DotEnvFileName); err != nil {
				return err
			}
			s, err := config.LoadSettings(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.Settings = s
			return nil
		},
	}
	cmd.SetVersionTemplate(versionString())

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, config.FlagConfig, config.DefaultDataPath(config.SettingsFileName), config.FlagDescConfig)
	cmd.PersistentFlags().BoolVar(&opts.Debug, config.FlagDebug, false, config.FlagDescDebug)

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewPersonCommand(opts))
	cmd.AddCommand(NewCredentialsCommand(opts))

	return cmd
}

// versionString is the build information printed by --version.
func versionString() string {
	return fmt.Sprintf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Debug(config.MsgAppStarting,
		config.LogKeyComponent, config.CompCLI,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyCommit, config.Commit),
			slog.String(config.LogKeyDate, config.Date),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}
