package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lmittmann/tint"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/lusi-lab/soilrig/pkg/hw"
	"github.com/lusi-lab/soilrig/pkg/rig"
	"github.com/lusi-lab/soilrig/pkg/scale"
)

type WeighCommand struct {
	Interval time.Duration `long:"interval" default:"1s" description:"Time between readings"`
	Samples  int           `long:"samples" default:"5" description:"ADC conversions averaged per reading"`
	Chart    bool          `long:"chart" description:"Show a live chart instead of plain readings"`
	Range    float64       `long:"range" default:"1000" description:"Chart full scale in grams"`
}

const (
	headerHeight = 2 // title + blank line
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

var (
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	weightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

type weighModel struct {
	mon      *scale.Monitor
	chart    *streamlinechart.Model
	grams    float64
	samples  int
	readErrs int
	logs     []string
	width    int
	height   int
	quitting bool
}

func (m *weighModel) addLog(msg string) {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

type sampleMsg scale.Sample
type logMsg string

func waitForSample(mon *scale.Monitor) tea.Cmd {
	return func() tea.Msg {
		return sampleMsg(<-mon.Samples())
	}
}

func waitForMonitorLog(mon *scale.Monitor) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-mon.Logs())
	}
}

func (m *weighModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - footerHeight - borderSize - 1
	if height < 10 {
		height = 10
	}
	return width, height
}

func initialWeighModel(mon *scale.Monitor, fullScale float64) weighModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, fullScale),
	)
	chart.SetDataSetStyles("grams", runes.ThinLineStyle, weightStyle)

	return weighModel{
		mon:   mon,
		chart: &chart,
	}
}

func (m weighModel) Init() tea.Cmd {
	return tea.Batch(
		waitForSample(m.mon),
		waitForMonitorLog(m.mon),
	)
}

func (m weighModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case sampleMsg:
		s := scale.Sample(msg)
		if s.Error != nil {
			m.readErrs++
		} else {
			m.grams = s.Grams
			m.samples++
			m.chart.PushDataSet("grams", s.Grams)
			m.chart.DrawAll()
		}
		return m, waitForSample(m.mon)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForMonitorLog(m.mon)
	}

	return m, nil
}

func (m weighModel) View() string {
	if m.quitting {
		return "Weight monitoring stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Soilrig Weigh"))
	sb.WriteString("  ")
	sb.WriteString(weightStyle.Render(fmt.Sprintf("%.2f g", m.grams)))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %d samples", m.samples)))
	if m.readErrs > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  %d read errors", m.readErrs)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = dimStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (c *WeighCommand) Execute(args []string) error {
	// Readings go to stdout so they can be piped; everything else goes
	// through the stderr logger.
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.DateTime}))

	cfg, err := rig.LoadConfig()
	if err != nil {
		cfg = rig.DefaultConfig()
	}
	if !cfg.Scale.IsCalibrated() {
		logger.Warn("scale is not calibrated; readings are raw counts, run hxcal first")
	}

	adc, err := hw.OpenHX711(cfg.Scale.DataPin, cfg.Scale.ClockPin)
	if err != nil {
		logger.Error("cannot open HX711", "err", err)
		os.Exit(1)
	}

	mon := scale.NewMonitor(scale.New(adc, cfg.Scale.Factor), scale.Config{
		Interval: c.Interval,
		Samples:  c.Samples,
	})
	defer mon.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- mon.Start(ctx)
	}()

	if c.Chart {
		p := tea.NewProgram(initialWeighModel(mon, c.Range), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			log.Fatalf("Error running program: %v", err)
		}
		select {
		case err := <-errCh:
			if err != nil && err != context.Canceled {
				logger.Error("monitor failed", "err", err)
				os.Exit(1)
			}
		default:
		}
		fmt.Println("Weight monitoring stopped.")
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nWeight monitoring stopped.")
			return nil
		case err := <-errCh:
			if err != nil && err != context.Canceled {
				logger.Error("monitor failed", "err", err)
				os.Exit(1)
			}
			return nil
		case msg := <-mon.Logs():
			logger.Info(msg)
		case s := <-mon.Samples():
			if s.Error != nil {
				continue
			}
			fmt.Printf("%.2f g\n", s.Grams)
		}
	}
}
