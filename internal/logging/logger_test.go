package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoonotic-report-server/internal/domain"
)

func TestNewWithOutput(t *testing.T) {
	tests := []struct {
		name      string
		cfg       domain.LoggingConfig
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{"JSON debug", domain.LoggingConfig{Level: "debug", Format: "json"}, logrus.DebugLevel, true},
		{"Text warn", domain.LoggingConfig{Level: "warn", Format: "TEXT"}, logrus.WarnLevel, false},
		{"Defaults", domain.LoggingConfig{}, logrus.InfoLevel, true},
		{"Unknown level", domain.LoggingConfig{Level: "chatty"}, logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithOutput(tt.cfg, &buf)
			assert.Equal(t, tt.wantLevel, logger.GetLevel())

			logger.WithField("report_id", "r1").Warn("stored")

			if tt.wantJSON {
				var entry map[string]any
				require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
				assert.Equal(t, "stored", entry["message"])
				assert.Equal(t, "warning", entry["level"])
				assert.Equal(t, "r1", entry["report_id"])
				assert.Contains(t, entry, "timestamp")
			} else {
				assert.Contains(t, buf.String(), "msg=stored")
				assert.Contains(t, buf.String(), "report_id=r1")
			}
		})
	}
}
