package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		debugOn   bool
		warnOnTop bool
	}{
		{name: "development default", cfg: Config{Development: true}, debugOn: true},
		{name: "production default", cfg: Config{}, debugOn: false},
		{name: "production debug", cfg: Config{Level: "debug"}, debugOn: true},
		{name: "development warn", cfg: Config{Development: true, Level: " WARN "}, debugOn: false, warnOnTop: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New(%+v) error = %v", tt.cfg, err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			core := logger.Core()
			if got := core.Enabled(zapcore.DebugLevel); got != tt.debugOn {
				t.Fatalf("debug enabled = %v, want %v", got, tt.debugOn)
			}
			if tt.warnOnTop && core.Enabled(zapcore.InfoLevel) {
				t.Fatal("expected info to be filtered at warn level")
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
