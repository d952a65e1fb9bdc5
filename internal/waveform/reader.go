// Package waveform reads digitizer exports into per-event, per-channel sample sequences.
package waveform

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rewired-gh/ratescan/internal/models"
)

// DefaultMaxSampleTime drops the tail of each capture past this sample time.
const DefaultMaxSampleTime = 150

// Channels recorded by the four-input scope, in column order.
var Channels = []string{"A", "B", "C", "D"}

// Source is anything that yields per-event samples for a channel.
type Source interface {
	Channels() []string
	Events(channel string) ([]models.ChargeEvent, error)
}

// Event is one trigger with the samples of every channel.
type Event struct {
	Index             int
	TriggerTimeMicros uint64
	SampleTimes       []int
	Samples           map[string][]float64
}

// Capture is a parsed acquisition file.
type Capture struct {
	Path     string
	Triggers []Event
}

var _ Source = (*Capture)(nil)

// Options controls parsing.
type Options struct {
	MaxSampleTime int
}

// ReadFile opens and parses a ps3000a text export.
func ReadFile(path string, opts Options) (*Capture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open waveform file %s: %w", path, err)
	}
	defer file.Close()

	c, err := Parse(file, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read waveform file %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse reads the text export format: a line holding a single unsigned integer opens a
// new event with that trigger time in microseconds; a line "t A B C D" appends one
// sample per channel to the current event. Other lines are ignored.
func Parse(r io.Reader, opts Options) (*Capture, error) {
	maxT := opts.MaxSampleTime
	if maxT <= 0 {
		maxT = DefaultMaxSampleTime
	}

	c := &Capture{}
	var cur *Event
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		switch len(fields) {
		case 1:
			trTime, err := strconv.ParseUint(fields[0], 10, 64)
			if err != nil {
				continue
			}
			c.Triggers = append(c.Triggers, Event{
				Index:             len(c.Triggers),
				TriggerTimeMicros: trTime,
				Samples:           make(map[string][]float64, len(Channels)),
			})
			cur = &c.Triggers[len(c.Triggers)-1]
		case 1 + len(Channels):
			vals, ok := parseInts(fields)
			if !ok {
				continue
			}
			if cur == nil {
				return nil, fmt.Errorf("line %d: sample before any trigger time", lineNo)
			}
			if vals[0] > maxT {
				continue
			}
			cur.SampleTimes = append(cur.SampleTimes, vals[0])
			for i, ch := range Channels {
				cur.Samples[ch] = append(cur.Samples[ch], float64(vals[i+1]))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNo, err)
	}
	return c, nil
}

func parseInts(fields []string) ([]int, bool) {
	vals := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// Channels lists the channels present in the capture.
func (c *Capture) Channels() []string {
	seen := make(map[string]bool)
	for _, ev := range c.Triggers {
		for ch := range ev.Samples {
			seen[ch] = true
		}
	}
	out := make([]string, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Events returns every event's samples for one channel, in file order.
func (c *Capture) Events(channel string) ([]models.ChargeEvent, error) {
	if !ValidChannel(channel) {
		return nil, fmt.Errorf("%w: unknown channel %q (want one of %s)",
			models.ErrConfiguration, channel, strings.Join(Channels, ", "))
	}
	out := make([]models.ChargeEvent, len(c.Triggers))
	for i, ev := range c.Triggers {
		out[i] = models.ChargeEvent{
			Index:             ev.Index,
			TriggerTimeMicros: ev.TriggerTimeMicros,
			Samples:           ev.Samples[channel],
		}
	}
	return out, nil
}

// TriggerTimes returns the trigger time of every event in file order.
func (c *Capture) TriggerTimes() []uint64 {
	out := make([]uint64, len(c.Triggers))
	for i, ev := range c.Triggers {
		out[i] = ev.TriggerTimeMicros
	}
	return out
}

// ValidChannel reports whether ch names one of the scope inputs.
func ValidChannel(ch string) bool {
	for _, c := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}
