package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestReporterSkipsPhasesWithNothingPlanned(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 40, map[string]int{"download": 2})

	r.Advance("build")
	r.Finish()

	if buf.Len() != 0 {
		t.Errorf("expected no output for a phase absent from total, got %q", buf.String())
	}
}

func TestReporterRendersEachPlannedPhase(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 40, map[string]int{"download": 2, "link": 1})

	r.Advance("download")
	r.Advance("download")
	r.Advance("link")
	r.Finish()

	out := buf.String()
	if !strings.Contains(out, "download") {
		t.Errorf("expected output to mention download phase, got %q", out)
	}
	if !strings.Contains(out, "link") {
		t.Errorf("expected output to mention link phase, got %q", out)
	}
}
