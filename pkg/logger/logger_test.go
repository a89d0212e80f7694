package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odysseyscraper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level json", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				_, statErr := os.Stat(tt.cfg.File)
				assert.NoError(t, statErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	l, err := New(&config.LoggingConfig{Level: "disabled", Format: "json"})
	require.NoError(t, err)

	parent := l.(*zerologLogger)
	child := parent.WithField("county", "hays").(*zerologLogger)
	grandchild := child.WithFields(map[string]interface{}{"officer": "39607"}).(*zerologLogger)

	assert.Empty(t, parent.fields)
	assert.Len(t, child.fields, 1)
	assert.Len(t, grandchild.fields, 2)
	assert.Same(t, l, l.WithError(nil))
}

func TestTestLoggerCapturesFields(t *testing.T) {
	tl := NewTestLogger()
	scoped := tl.WithField("county", "hays").WithError(errors.New("boom"))

	scoped.WarnWithFields("query failed", map[string]interface{}{"officer": "39607"})
	tl.Info("run started")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "hays", msgs[0].Fields["county"])
	assert.Equal(t, "39607", msgs[0].Fields["officer"])
	assert.Equal(t, "boom", msgs[0].Error)
	assert.True(t, tl.HasMessage("run started"))
	assert.False(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestLogRequestLevels(t *testing.T) {
	tl := NewTestLogger()
	LogRequest(tl, "GET", "http://portal/", 200, 0)
	LogRequest(tl, "GET", "http://portal/", 404, 0)
	LogRequest(tl, "POST", "http://portal/Search.aspx", 503, 0)

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
}
