package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		" WARN ":  WARN,
		"warning": WARN,
		"error":   ERROR,
		"":        INFO,
		"chatty":  INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNamedSharesSink(t *testing.T) {
	var buf bytes.Buffer
	root := New(Config{Level: INFO, Output: &buf})
	child := root.Named("loader").Named("images")

	child.Debugf("hidden %d", 1)
	child.Infof("cached %s", "m1")
	if got := buf.String(); !strings.Contains(got, "[loader] [images] cached m1") {
		t.Errorf("unexpected output %q", got)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug line written at INFO level")
	}

	buf.Reset()
	root.SetLevel(DEBUG)
	child.Debugf("now visible")
	if !strings.Contains(buf.String(), "[DEBUG]") {
		t.Errorf("child did not pick up the root level: %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Errorf("nothing %s", "here")
	l.Named("x").Warnf("still nothing")
}
