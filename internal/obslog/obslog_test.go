package obslog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandleRendersAlignedBlock(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelDebug)

	logger.Info("process admitted", "pid", 7, "prio", 3)

	out := buf.String()
	for _, want := range []string{"LEVEL", "MESSAGE", "process admitted", "PID", "7", "PRIO", "3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q, got:\n%s", want, out)
		}
	}
}

func TestEnabledRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelWarn)

	logger.Debug("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("debug line leaked through a Warn-level handler:\n%s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn line missing:\n%s", out)
	}
}

func TestWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo).With("component", "pager")

	logger.WithGroup("fault").Info("evicted", slog.Int("victim", 4))

	out := buf.String()
	if !strings.Contains(out, "COMPONENT") || !strings.Contains(out, "pager") {
		t.Fatalf("persistent attr missing:\n%s", out)
	}
	if !strings.Contains(out, "FAULT.VICTIM") {
		t.Fatalf("grouped attr key missing:\n%s", out)
	}
}
