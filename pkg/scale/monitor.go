package scale

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sample is one weight reading.
type Sample struct {
	Grams     float64
	Timestamp time.Time
	Error     error
}

// Monitor runs the periodic weight sampling loop.
type Monitor struct {
	scale       *Scale
	interval    time.Duration
	samples     int
	tareSamples int

	mu       sync.Mutex
	running  bool
	sampleCh chan Sample
	logCh    chan string
}

// Config holds configuration for the monitor.
type Config struct {
	Interval    time.Duration // between samples, default 1s
	Samples     int           // conversions averaged per sample, default 5
	TareSamples int           // conversions averaged for the startup tare, default 15
}

// NewMonitor creates a monitor over an opened scale.
func NewMonitor(s *Scale, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 5
	}
	if cfg.TareSamples <= 0 {
		cfg.TareSamples = 15
	}
	return &Monitor{
		scale:       s,
		interval:    cfg.Interval,
		samples:     cfg.Samples,
		tareSamples: cfg.TareSamples,
		sampleCh:    make(chan Sample, 1),
		logCh:       make(chan string, 10),
	}
}

// Close stops the monitor and releases the ADC.
func (m *Monitor) Close() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return m.scale.Close()
}

// Samples returns a channel that receives weight samples.
func (m *Monitor) Samples() <-chan Sample {
	return m.sampleCh
}

// Logs returns a channel that receives log messages.
func (m *Monitor) Logs() <-chan string {
	return m.logCh
}

// Interval returns the sampling interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

func (m *Monitor) log(format string, args ...any) {
	select {
	case m.logCh <- fmt.Sprintf(format, args...):
	default:
		// Drop if channel full
	}
}

// Start tares the scale and begins the sampling loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("already running")
	}
	m.running = true
	m.mu.Unlock()

	m.log("Taring over %d readings, keep the platform empty", m.tareSamples)
	if err := m.scale.Tare(ctx, m.tareSamples); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}
	m.log("Tare complete (offset %.0f counts)", m.scale.Offset())
	m.log("Sampling every %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case <-ticker.C:
			m.step(ctx)
		}
	}
}

func (m *Monitor) step(ctx context.Context) {
	grams, err := m.scale.Weight(ctx, m.samples)
	if err != nil {
		m.log("Read error: %v", err)
		m.send(Sample{Error: err, Timestamp: time.Now()})
		return
	}

	// Sleeping the chip between samples keeps thermal drift down.
	if err := m.scale.PowerCycle(); err != nil {
		m.log("Power cycle error: %v", err)
	}

	m.send(Sample{Grams: grams, Timestamp: time.Now()})
}

func (m *Monitor) send(s Sample) {
	select {
	case m.sampleCh <- s:
	default:
		// Drop old sample if channel full, replace with new
		select {
		case <-m.sampleCh:
		default:
		}
		m.sampleCh <- s
	}
}

func (m *Monitor) shutdown() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	if err := m.scale.adc.PowerDown(); err != nil {
		m.log("Warning: failed to power down ADC: %v", err)
	}
	m.log("Weight monitoring stopped")
}
