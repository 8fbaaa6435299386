package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/sms-carver/acquire"
	"github.com/ftl/sms-carver/export"
	"github.com/ftl/sms-carver/tpdu"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("IMAP_PASS", "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	v, err := NewViper("")
	require.NoError(t, err)

	config, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, []string{"0", "1"}, config.Carve.Parsers)
	assert.Empty(t, config.Carve.Filters)
	assert.True(t, config.Carve.Overlap)
	assert.Equal(t, 1, config.Carve.Workers)
	assert.Equal(t, export.DefaultDomain, config.Export.Domain)
	assert.Equal(t, "INBOX", config.IMAP.Folder)
	assert.False(t, config.IMAP.Enabled())
	assert.Equal(t, []string{"SM"}, config.Serial.Storages)
	assert.Equal(t, 30*time.Second, config.Serial.Timeout)

	options, err := config.Carve.TextOptions()
	require.NoError(t, err)
	assert.Equal(t, tpdu.TextOptions{Alphabet: tpdu.ApproximateAlphabet, OctetCodec: tpdu.ASCII}, options)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	isolate(t)
	configFile := filepath.Join(t.TempDir(), "carve.yaml")
	content := `
log:
  level: debug
carve:
  filters: ["0", dedup]
  overlap: false
  alphabet: gsm
  codec: ISO8859-1
imap:
  host: imap.example.com
  username: examiner
serial:
  storages: [sim, phone]
  timeout: 5s
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))
	t.Setenv("SMSCARVE_CARVE_WORKERS", "4")
	t.Setenv("SMSCARVE_IMAP_PASSWORD", "secret")

	v, err := NewViper(configFile)
	require.NoError(t, err)
	config, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, []string{"0", "dedup"}, config.Carve.Filters)
	assert.False(t, config.Carve.Overlap)
	assert.Equal(t, 4, config.Carve.Workers)
	assert.Equal(t, 5*time.Second, config.Serial.Timeout)

	options, err := config.Carve.TextOptions()
	require.NoError(t, err)
	assert.Equal(t, tpdu.DefaultAlphabet, options.Alphabet)
	assert.Equal(t, "ISO8859-1", options.OctetCodec)

	assert.True(t, config.IMAP.Enabled())
	imapOptions := config.IMAP.Options()
	assert.Equal(t, "imap.example.com", imapOptions.Host)
	assert.Equal(t, 993, imapOptions.Port)
	assert.Equal(t, "secret", imapOptions.Password)
	assert.True(t, imapOptions.UseTLS)

	storages, err := config.Serial.StorageList()
	require.NoError(t, err)
	assert.Equal(t, []acquire.Storage{acquire.SIM, acquire.Phone}, storages)
}

func TestLoad_PasswordFallback(t *testing.T) {
	isolate(t)
	t.Setenv("IMAP_PASS", "fallback")
	v, err := NewViper("")
	require.NoError(t, err)

	config, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "fallback", config.IMAP.Password)
}

func TestNewViper_MissingFile(t *testing.T) {
	isolate(t)
	_, err := NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Log:    Logging{Level: "info"},
			Carve:  Carving{Workers: 1, Alphabet: "approximate"},
			Serial: Serial{Storages: []string{"SM"}},
		}
	}
	require.NoError(t, valid().Validate())

	tt := []struct {
		desc   string
		modify func(*Config)
	}{
		{desc: "log level", modify: func(c *Config) { c.Log.Level = "loud" }},
		{desc: "workers", modify: func(c *Config) { c.Carve.Workers = 0 }},
		{desc: "alphabet", modify: func(c *Config) { c.Carve.Alphabet = "runic" }},
		{desc: "codec", modify: func(c *Config) { c.Carve.Codec = "EBCDIC-42" }},
		{desc: "format", modify: func(c *Config) { c.Export.Format = "xlsx" }},
		{desc: "storage", modify: func(c *Config) { c.Serial.Storages = []string{"cloud"} }},
		{desc: "padding", modify: func(c *Config) { c.Serial.Padding = -1 }},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			config := valid()
			tc.modify(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestExport_OutputFormat(t *testing.T) {
	tt := []struct {
		desc     string
		export   Export
		expected export.Format
		invalid  bool
	}{
		{desc: "from filename", export: Export{Output: "messages.csv"}, expected: export.CSV},
		{desc: "explicit format", export: Export{Output: "messages.txt", Format: "mbox"}, expected: export.Mbox},
		{desc: "unknown extension", export: Export{Output: "messages.txt"}, invalid: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			actual, err := tc.export.OutputFormat()
			if tc.invalid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tt := []struct {
		value    string
		expected zerolog.Level
	}{
		{value: "", expected: zerolog.InfoLevel},
		{value: "debug", expected: zerolog.DebugLevel},
		{value: " Warn ", expected: zerolog.WarnLevel},
		{value: "TRACE", expected: zerolog.TraceLevel},
		{value: "disabled", expected: zerolog.Disabled},
	}
	for _, tc := range tt {
		t.Run(tc.value, func(t *testing.T) {
			actual, err := ParseLevel(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}

	_, err := ParseLevel("not-a-level")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	buffer := &bytes.Buffer{}
	logger, closer, err := NewLogger(Logging{Level: "warn"}, buffer)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Int("offset", 42).Msg("visible")

	assert.NotContains(t, buffer.String(), "hidden")
	assert.Contains(t, buffer.String(), `"offset":42`)
	assert.Contains(t, buffer.String(), `"message":"visible"`)
}

func TestNewLogger_File(t *testing.T) {
	buffer := &bytes.Buffer{}
	filename := filepath.Join(t.TempDir(), "smscarve.log")
	logger, closer, err := NewLogger(Logging{Level: "info", Console: true, File: filename, MaxSize: 1}, buffer)
	require.NoError(t, err)

	logger.Info().Msg("carving started")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"message":"carving started"`)
	assert.Contains(t, buffer.String(), "carving started")
	assert.NotContains(t, buffer.String(), `"message"`)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, _, err := NewLogger(Logging{Level: "chatty"}, nil)
	assert.Error(t, err)
}
