package gnss

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// probeReadTimeout bounds a single serial read while probing.
const probeReadTimeout = 200 * time.Millisecond

// ProbeResult summarises what a port produced while being watched for
// NMEA traffic.
type ProbeResult struct {
	Sentences int
	Talker    string
	Fix       Fix
	HasFix    bool
}

// portCandidate pairs a port name with the descriptive text used for
// ranking. USB ports contribute their product string and VID:PID.
type portCandidate struct {
	name string
	desc string
}

// DetectPort scans the serial ports for an NMEA talker, probing the
// most likely candidates first, and returns the first port that
// produces a valid sentence within timeout.
func DetectPort(baud int, timeout time.Duration) (string, error) {
	cands, err := listCandidates()
	if err != nil {
		return "", err
	}
	if len(cands) == 0 {
		return "", errors.New("no serial ports found")
	}
	for _, c := range rankCandidates(cands) {
		res, err := ProbePort(c.name, baud, timeout)
		if err != nil {
			continue
		}
		if res.Sentences > 0 {
			return c.name, nil
		}
	}
	return "", errors.New("no NMEA talker found")
}

func listCandidates() ([]portCandidate, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		cands := make([]portCandidate, 0, len(details))
		for _, d := range details {
			desc := d.Name
			if d.IsUSB {
				desc += " " + d.Product + " " + d.VID + ":" + d.PID
			}
			cands = append(cands, portCandidate{name: d.Name, desc: desc})
		}
		return cands, nil
	}

	// Fall back to bare names when the platform enumerator fails.
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	cands := make([]portCandidate, 0, len(names))
	for _, n := range names {
		cands = append(cands, portCandidate{name: n, desc: n})
	}
	return cands, nil
}

// rankCandidates orders ports so receivers and the usual USB serial
// bridges are probed before generic ports.
func rankCandidates(cands []portCandidate) []portCandidate {
	ranked := make([]portCandidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		return portScore(ranked[i].desc) > portScore(ranked[j].desc)
	})
	return ranked
}

func portScore(desc string) int {
	n := strings.ToLower(desc)
	score := 0
	for _, kw := range []string{"u-blox", "ublox", "gnss", "gps", "nmea"} {
		if strings.Contains(n, kw) {
			score += 10
		}
	}
	for _, kw := range []string{"ch340", "cp210", "ft232", "pl2303"} {
		if strings.Contains(n, kw) {
			score += 5
		}
	}
	// u-blox modules enumerate as CDC ACM when wired over native USB.
	if strings.Contains(n, "ttyacm") {
		score++
	}
	return score
}

// ProbePort opens a port and counts the NMEA sentences it produces
// within timeout, accumulating any position data seen. A baud of zero
// means the NMEA default.
func ProbePort(name string, baud int, timeout time.Duration) (ProbeResult, error) {
	if baud <= 0 {
		baud = Baud
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return ProbeResult{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer port.Close()
	if err := port.SetReadTimeout(probeReadTimeout); err != nil {
		return ProbeResult{}, err
	}

	var res ProbeResult
	var acc Reader
	buf := make([]byte, 256)
	var pending []byte
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if err != nil {
			if res.Sentences > 0 {
				break
			}
			return res, err
		}
		if n == 0 {
			continue
		}
		pending = append(pending, buf[:n]...)
		consumeLines(&pending, func(line string) {
			res.observe(line, &acc)
		})
		// A binary stream at the wrong baud rate never produces line
		// breaks. Keep only the tail.
		if len(pending) > 4096 {
			pending = pending[len(pending)-512:]
		}
	}
	res.Fix, res.HasFix = acc.Fix()
	return res, nil
}

// observe counts a line if it parses and folds it into the fix
// accumulator.
func (res *ProbeResult) observe(line string, acc *Reader) {
	s, err := nmea.Parse(line)
	if err != nil {
		return
	}
	res.Sentences++
	res.Talker = s.TalkerID()
	_ = acc.ingest(line)
}

// consumeLines pulls complete lines out of pending and feeds them to
// fn, leaving any partial tail in place.
func consumeLines(pending *[]byte, fn func(line string)) {
	for {
		idx := bytes.IndexByte(*pending, '\n')
		if idx < 0 {
			return
		}
		line := strings.TrimSpace(string((*pending)[:idx]))
		*pending = (*pending)[idx+1:]
		if line != "" {
			fn(line)
		}
	}
}
