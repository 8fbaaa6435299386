/*
The package config loads the settings of smscarve from the config file smscarve.yaml, the environment
(SMSCARVE_*) and the command line flags, and sets up logging.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ftl/sms-carver/acquire"
	"github.com/ftl/sms-carver/export"
	"github.com/ftl/sms-carver/imap"
	"github.com/ftl/sms-carver/serial"
	"github.com/ftl/sms-carver/tpdu"
)

const (
	ApplicationName = "smscarve"
	EnvPrefix       = "SMSCARVE"
)

type Config struct {
	Log    Logging `mapstructure:"log"`
	Carve  Carving `mapstructure:"carve"`
	Export Export  `mapstructure:"export"`
	IMAP   IMAP    `mapstructure:"imap"`
	Serial Serial  `mapstructure:"serial"`
}

// Carving selects the parsers and filters of a run and how the user data is decoded.
type Carving struct {
	Parsers  []string `mapstructure:"parsers"`
	Filters  []string `mapstructure:"filters"`
	Profiles string   `mapstructure:"profiles"`
	Overlap  bool     `mapstructure:"overlap"`
	Workers  int      `mapstructure:"workers"`
	Alphabet string   `mapstructure:"alphabet"`
	Codec    string   `mapstructure:"codec"`
}

type Export struct {
	Output string `mapstructure:"output"`
	// Format overrides the format derived from the output filename.
	Format string `mapstructure:"format"`
	Domain string `mapstructure:"domain"`
}

type IMAP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	Insecure bool   `mapstructure:"insecure"`
	Folder   string `mapstructure:"folder"`
	DryRun   bool   `mapstructure:"dry_run"`
}

type Serial struct {
	Port        string        `mapstructure:"port"`
	BaudRate    uint          `mapstructure:"baud_rate"`
	FlowControl bool          `mapstructure:"flow_control"`
	Storages    []string      `mapstructure:"storages"`
	Padding     int           `mapstructure:"padding"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SetDefaults registers the default value of every setting. Only keys with a default are picked up from the
// environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", false)

	v.SetDefault("carve.parsers", []string{"0", "1"})
	v.SetDefault("carve.filters", []string{})
	v.SetDefault("carve.profiles", "")
	v.SetDefault("carve.overlap", true)
	v.SetDefault("carve.workers", 1)
	v.SetDefault("carve.alphabet", tpdu.ApproximateAlphabet.String())
	v.SetDefault("carve.codec", tpdu.ASCII)

	v.SetDefault("export.output", "")
	v.SetDefault("export.format", "")
	v.SetDefault("export.domain", export.DefaultDomain)

	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.insecure", false)
	v.SetDefault("imap.folder", imap.DefaultFolder)
	v.SetDefault("imap.dry_run", false)

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", serial.DefaultBaudRate)
	v.SetDefault("serial.flow_control", false)
	v.SetDefault("serial.storages", []string{string(acquire.SIM)})
	v.SetDefault("serial.padding", 16)
	v.SetDefault("serial.timeout", 30*time.Second)
}

// NewViper returns a viper instance with the defaults, the environment and the config file. If configFile is empty,
// smscarve.yaml is searched in the working directory and in the user's config directory, a missing file is not
// an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName(ApplicationName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, ok := configDir(); ok {
		v.AddConfigPath(dir)
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return v, nil
}

func configDir() (string, bool) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ApplicationName), true
}

// Load the configuration from viper and validate it.
func Load(v *viper.Viper) (Config, error) {
	var result Config
	if err := v.Unmarshal(&result); err != nil {
		return Config{}, fmt.Errorf("cannot decode configuration: %w", err)
	}
	if result.IMAP.Password == "" {
		result.IMAP.Password = os.Getenv("IMAP_PASS")
	}
	if err := result.Validate(); err != nil {
		return Config{}, err
	}
	return result, nil
}

func (c Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.Carve.Workers < 1 {
		return fmt.Errorf("the number of workers must be positive, got %d", c.Carve.Workers)
	}
	if _, err := c.Carve.TextOptions(); err != nil {
		return err
	}
	if c.Export.Format != "" {
		if _, err := export.ParseFormat(c.Export.Format); err != nil {
			return err
		}
	}
	if _, err := c.Serial.StorageList(); err != nil {
		return err
	}
	if c.Serial.Padding < 0 {
		return fmt.Errorf("the padding must not be negative, got %d", c.Serial.Padding)
	}
	return nil
}

// TextOptions returns the options to decode the user data.
func (c Carving) TextOptions() (tpdu.TextOptions, error) {
	alphabet, ok := tpdu.AlphabetByName[strings.ToLower(strings.TrimSpace(c.Alphabet))]
	if !ok {
		return tpdu.TextOptions{}, fmt.Errorf("unknown alphabet %q", c.Alphabet)
	}
	result := tpdu.TextOptions{
		Alphabet:   alphabet,
		OctetCodec: strings.TrimSpace(c.Codec),
	}
	if err := result.Validate(); err != nil {
		return tpdu.TextOptions{}, err
	}
	return result, nil
}

// OutputFormat returns the configured export format, or the format derived from the output filename.
func (e Export) OutputFormat() (export.Format, error) {
	if e.Format != "" {
		return export.ParseFormat(e.Format)
	}
	format, ok := export.FormatOf(e.Output)
	if !ok {
		return "", fmt.Errorf("cannot derive the export format from %q, use one of %s", e.Output, strings.Join(export.Formats(), ", "))
	}
	return format, nil
}

// Enabled tells if the recovered messages should be uploaded.
func (i IMAP) Enabled() bool {
	return i.Host != ""
}

func (i IMAP) Options() imap.Options {
	return imap.Options{
		Host:               i.Host,
		Port:               i.Port,
		Username:           i.Username,
		Password:           i.Password,
		UseTLS:             i.TLS,
		InsecureSkipVerify: i.Insecure,
		TargetFolder:       i.Folder,
		DryRun:             i.DryRun,
	}
}

func (s Serial) Config() serial.Config {
	return serial.Config{
		PortName:    s.Port,
		BaudRate:    s.BaudRate,
		FlowControl: s.FlowControl,
	}
}

// StorageList returns the message storages that are acquired, in order.
func (s Serial) StorageList() ([]acquire.Storage, error) {
	result := make([]acquire.Storage, 0, len(s.Storages))
	for _, name := range s.Storages {
		storage, err := acquire.StorageByName(name)
		if err != nil {
			return nil, err
		}
		result = append(result, storage)
	}
	return result, nil
}
