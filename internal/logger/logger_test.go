package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ewmac.log")
	log, err := New("ewmac", Config{Level: "warn", Output: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("symbol", "ABG.JO").Msg("skipped")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	for _, want := range []string{`"service":"ewmac"`, `"symbol":"ABG.JO"`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("ewmac", Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
