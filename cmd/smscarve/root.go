package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ftl/sms-carver/config"
)

var (
	configFile string
	settings   *viper.Viper
	cfg        config.Config
	logger     = zerolog.Nop()
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "smscarve",
	Short: "Recover SMS messages from binary images",
	Long: `smscarve tries to decode an SMS-SUBMIT or SMS-DELIVER TPDU at every offset of a binary image and
reports the plausible messages. The results can be exported as CSV, JSON lines, PDF report or mbox, and
uploaded into an IMAP folder.

Settings are read from smscarve.yaml in the working directory or in the user's config directory, and from
SMSCARVE_* environment variables, e.g. SMSCARVE_CARVE_WORKERS=4.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

type flagBinding struct {
	key   string
	flags *pflag.FlagSet
	name  string
}

var flagBindings []flagBinding

// bind the flag with the given name to the configuration key. Only the bindings of the executed command and
// the persistent flags are applied when the configuration is loaded.
func bind(key string, flags *pflag.FlagSet, name string) {
	flagBindings = append(flagBindings, flagBinding{key: key, flags: flags, name: name})
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: smscarve.yaml)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.Bool("log-console", true, "write human readable log lines instead of JSON")
	flags.String("log-file", "", "write the log also into this file, it is rotated automatically")
	bind("log.level", flags, "log-level")
	bind("log.console", flags, "log-console")
	bind("log.file", flags, "log-file")
}

func initConfig() {
	var err error
	settings, err = config.NewViper(configFile)
	cobra.CheckErr(err)
}

func setup(cmd *cobra.Command, _ []string) error {
	for _, binding := range flagBindings {
		if binding.flags != cmd.Flags() && binding.flags != cmd.Root().PersistentFlags() {
			continue
		}
		if err := settings.BindPFlag(binding.key, binding.flags.Lookup(binding.name)); err != nil {
			return err
		}
	}

	var err error
	cfg, err = config.Load(settings)
	if err != nil {
		return err
	}
	logger, logCloser, err = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger.Debug().Str("config", settings.ConfigFileUsed()).Str("command", cmd.Name()).Msg("configuration loaded")
	return nil
}

func teardown(*cobra.Command, []string) error {
	if logCloser == nil {
		return nil
	}
	return logCloser.Close()
}
