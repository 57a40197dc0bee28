// Package gnss follows a serial NMEA talker and keeps the latest
// merged position fix for tagging captures.
package gnss

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
)

// Baud is the NMEA default line rate.
const Baud = 9600

// knotsToMS converts the RMC ground speed unit.
const knotsToMS = 0.514444

// Fix is the merged view of the talker's position sentences.
type Fix struct {
	Lat       float64
	Lon       float64
	AltMSL    float64
	SpeedMS   float64
	HDOP      float64
	Sats      int
	Valid     bool
	UpdatedAt time.Time
}

// Reader consumes an NMEA stream in the background. GGA sentences
// carry altitude, HDOP and satellite count; RMC and GLL refresh the
// position between GGA updates.
type Reader struct {
	port io.ReadCloser

	mu        sync.RWMutex
	fix       Fix
	sentences int
	lastErr   error

	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
}

// Open opens the named serial port and starts the background reader.
// A baud of zero means the NMEA default.
func Open(portName string, baud int) (*Reader, error) {
	if baud <= 0 {
		baud = Baud
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open gnss port %s: %w", portName, err)
	}
	r := newReader(port)
	r.start()
	return r, nil
}

func newReader(rc io.ReadCloser) *Reader {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Reader{port: rc, cancelCtx: cancelCtx, cancelFunc: cancelFunc}
}

func (r *Reader) start() {
	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		br := bufio.NewReader(r.port)
		for {
			select {
			case <-r.cancelCtx.Done():
				return
			default:
			}

			line, err := br.ReadString('\n')
			if line != "" {
				// Parse failures are routine: proprietary sentences,
				// partial lines after open.
				_ = r.ingest(line)
			}
			if err != nil {
				r.mu.Lock()
				if r.cancelCtx.Err() == nil {
					r.lastErr = err
				}
				r.mu.Unlock()
				return
			}
		}
	}()
}

// ingest parses one sentence and merges it into the fix.
func (r *Reader) ingest(line string) error {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch m := s.(type) {
	case nmea.GGA:
		r.fix.Lat = m.Latitude
		r.fix.Lon = m.Longitude
		r.fix.AltMSL = m.Altitude
		r.fix.HDOP = m.HDOP
		r.fix.Sats = int(m.NumSatellites)
		r.fix.Valid = m.FixQuality != nmea.Invalid
	case nmea.RMC:
		r.fix.Lat = m.Latitude
		r.fix.Lon = m.Longitude
		r.fix.SpeedMS = m.Speed * knotsToMS
		r.fix.Valid = m.Validity == nmea.ValidRMC
	case nmea.GLL:
		r.fix.Lat = m.Latitude
		r.fix.Lon = m.Longitude
	default:
		return nil
	}
	r.fix.UpdatedAt = time.Now()
	r.sentences++
	return nil
}

// Fix returns the latest merged fix. ok is false until the first
// position sentence has been seen.
func (r *Reader) Fix() (Fix, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fix, r.sentences > 0
}

// Err returns the error that stopped the background reader, if any.
func (r *Reader) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Close stops the background reader and closes the port.
func (r *Reader) Close() error {
	r.cancelFunc()
	err := r.port.Close()
	r.workers.Wait()
	return err
}
