package waveform

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rewired-gh/ratescan/internal/models"
)

const sampleExport = `ps3000a block capture
1000
0 -1 -2 -3 -4
1 -5 -6 -7 -8
151 -100 -100 -100 -100

251000
0 -10 0 0 0
2 -20 0 0 1
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleExport), Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.Triggers) != 2 {
		t.Fatalf("got %d events, want 2", len(c.Triggers))
	}

	first := c.Triggers[0]
	if first.TriggerTimeMicros != 1000 || first.Index != 0 {
		t.Errorf("unexpected first event header: %+v", first)
	}
	if got := first.Samples["A"]; len(got) != 2 || got[0] != -1 || got[1] != -5 {
		t.Errorf("channel A samples = %v, want [-1 -5] (t=151 dropped)", got)
	}
	if got := first.Samples["D"]; len(got) != 2 || got[1] != -8 {
		t.Errorf("channel D samples = %v", got)
	}

	times := c.TriggerTimes()
	if times[1] != 251000 {
		t.Errorf("second trigger = %d, want 251000", times[1])
	}
}

func TestParse_MaxSampleTime(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleExport), Options{MaxSampleTime: 1000})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n := len(c.Triggers[0].Samples["B"]); n != 3 {
		t.Errorf("got %d samples, want 3 with a wider window", n)
	}
}

func TestParse_SampleBeforeTrigger(t *testing.T) {
	_, err := Parse(strings.NewReader("0 1 2 3 4\n100\n"), Options{})
	if err == nil {
		t.Error("expected error for samples before the first trigger")
	}
}

func TestCaptureEvents(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleExport), Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	events, err := c.Events("A")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 || events[1].Samples[1] != -20 {
		t.Errorf("unexpected events: %+v", events)
	}

	if _, err := c.Events("E"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for unknown channel, got %v", err)
	}

	chs := c.Channels()
	if strings.Join(chs, "") != "ABCD" {
		t.Errorf("channels = %v", chs)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_1000_50_7_770V.txt")
	if err := os.WriteFile(path, []byte(sampleExport), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := ReadFile(path, Options{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if c.Path != path || len(c.Triggers) != 2 {
		t.Errorf("unexpected capture: path=%s events=%d", c.Path, len(c.Triggers))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}
