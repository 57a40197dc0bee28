package gnss

import (
	"reflect"
	"testing"
)

func TestPortScore(t *testing.T) {
	tests := []struct {
		desc string
		want int
	}{
		{"/dev/ttyUSB0", 0},
		{"/dev/ttyACM0", 1},
		{"/dev/ttyUSB0 CP2102 USB to UART Bridge Controller 10c4:ea60", 5},
		{"/dev/ttyACM0 u-blox 7 - GPS/GNSS Receiver 1546:01a7", 31},
		{"/dev/ttyUSB1 FT232R USB UART 0403:6001", 5},
	}
	for _, tt := range tests {
		if got := portScore(tt.desc); got != tt.want {
			t.Errorf("portScore(%q) = %d, want %d", tt.desc, got, tt.want)
		}
	}
}

func TestRankCandidates(t *testing.T) {
	cands := []portCandidate{
		{name: "/dev/ttyS0", desc: "/dev/ttyS0"},
		{name: "/dev/ttyUSB0", desc: "/dev/ttyUSB0 CP2102 USB to UART Bridge Controller 10c4:ea60"},
		{name: "/dev/ttyACM0", desc: "/dev/ttyACM0 u-blox 7 - GPS/GNSS Receiver 1546:01a7"},
	}
	got := rankCandidates(cands)
	want := []string{"/dev/ttyACM0", "/dev/ttyUSB0", "/dev/ttyS0"}
	for i, name := range want {
		if got[i].name != name {
			t.Errorf("rank[%d] = %s, want %s", i, got[i].name, name)
		}
	}
	if cands[0].name != "/dev/ttyS0" {
		t.Error("rankCandidates should not reorder its input")
	}
}

func TestConsumeLines(t *testing.T) {
	var lines []string
	pending := []byte("first\r\nsecond\npartial")
	consumeLines(&pending, func(line string) {
		lines = append(lines, line)
	})
	if !reflect.DeepEqual(lines, []string{"first", "second"}) {
		t.Errorf("lines = %v", lines)
	}
	if string(pending) != "partial" {
		t.Errorf("left %q in buffer, want %q", pending, "partial")
	}

	consumeLines(&pending, func(line string) {
		t.Errorf("unexpected line %q from partial buffer", line)
	})
}

func TestProbeObserve(t *testing.T) {
	var res ProbeResult
	var acc Reader
	pending := []byte("garbage line\r\n" + ggaFix + "\r\n" + rmcValid + "\r\n")
	consumeLines(&pending, func(line string) {
		res.observe(line, &acc)
	})

	if res.Sentences != 2 {
		t.Errorf("sentences = %d, want 2", res.Sentences)
	}
	if res.Talker != "GP" {
		t.Errorf("talker = %q, want GP", res.Talker)
	}
	fix, ok := acc.Fix()
	if !ok {
		t.Fatal("no fix accumulated")
	}
	if !near(fix.Lat, 48.1173) || !fix.Valid {
		t.Errorf("fix = %+v", fix)
	}
}
