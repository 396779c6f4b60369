package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "text"}, &buf)

	log.Debug("hidden")
	log.Info("queue updated", "remaining", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record leaked at info level: %s", out)
	}
	if !strings.Contains(out, "level=INFO") || !strings.Contains(out, "remaining=42") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json"}, &buf)

	log.Debug("resolving selector", "selector", "auth-flow")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not JSON: %v (%s)", err, buf.String())
	}
	if rec["level"] != "DEBUG" || rec["selector"] != "auth-flow" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewBadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "chatty"}, &buf)

	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("bad level did not fall back to info: %s", out)
	}
}
