package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lusi-lab/soilrig/pkg/camera"
	"github.com/lusi-lab/soilrig/pkg/spectro"
)

type SpectroCommand struct {
	Index     int     `long:"index" default:"0" description:"Camera position in the scan list"`
	Device    string  `long:"device" description:"Substring of the camera label, overrides --index"`
	Width     int     `long:"width" default:"800" description:"Requested frame width"`
	Height    int     `long:"height" default:"600" description:"Requested frame height"`
	FPS       float64 `long:"fps" default:"30" description:"Requested frame rate"`
	Row       int     `long:"row" default:"-1" description:"Sensor row to sample, -1 for the centre"`
	Dir       string  `long:"dir" default:"." description:"Snapshot directory"`
	Waterfall bool    `long:"waterfall" description:"Start with the waterfall history on"`
}

const (
	// waterfallRows is the saved history depth, matching the snapshot PNG.
	waterfallRows = 320
	// waterfallView is how many of the newest rows the TUI shows.
	waterfallView = 8

	savpolyMax = 15
	knobMax    = 100
)

var (
	uncalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
)

var blockRunes = []rune("▁▂▃▄▅▆▇█")

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type spectroModel struct {
	cmd    SpectroCommand
	cam    *camera.Device
	frames chan frame

	cal       *spectro.Calibration
	grat      spectro.Graticule
	intensity []float64
	camW      int

	hold      bool
	measuring bool
	cursor    int
	recorded  []int
	savpoly   int
	mindist   int
	thresh    int

	wf   *spectro.Waterfall
	wfOn bool

	calibrating bool
	calInput    textinput.Model

	meter    camera.RateMeter
	lastSave string
	logs     []string
	width    int
	height   int
	quitting bool
}

func initialSpectroModel(cmd SpectroCommand, cam *camera.Device, frames chan frame) spectroModel {
	camW := cam.Format().Width
	if camW <= 0 {
		camW = cmd.Width
	}
	m := spectroModel{
		cmd:     cmd,
		cam:     cam,
		frames:  frames,
		camW:    camW,
		cursor:  camW / 2,
		savpoly: 7,
		mindist: 50,
		thresh:  20,
		wfOn:    cmd.Waterfall,
	}
	m.intensity = make([]float64, camW)
	m.cal = spectro.LoadCalibration(spectro.CalFile, camW)
	m.grat = m.cal.Graticule()
	if m.wfOn {
		m.wf = spectro.NewWaterfall(camW, waterfallRows)
	}
	return m
}

func (m *spectroModel) addLog(msg string) {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// setWidth rebuilds the per-column state when the camera delivers a
// different width than it advertised.
func (m *spectroModel) setWidth(camW int) {
	m.camW = camW
	m.intensity = make([]float64, camW)
	m.cal = spectro.LoadCalibration(spectro.CalFile, camW)
	m.grat = m.cal.Graticule()
	m.cursor = clamp(m.cursor, 0, camW-1)
	if m.wfOn {
		m.wf = spectro.NewWaterfall(camW, waterfallRows)
	}
}

func (m *spectroModel) toggleWaterfall() {
	m.wfOn = !m.wfOn
	if m.wfOn && m.wf == nil {
		m.wf = spectro.NewWaterfall(m.camW, waterfallRows)
	}
	if m.wfOn {
		m.addLog("Waterfall on")
	} else {
		m.addLog("Waterfall off")
	}
}

func (m *spectroModel) recordPoint() {
	if !m.measuring {
		m.addLog("Enable measure mode (m) before marking points")
		return
	}
	m.recorded = append(m.recorded, m.cursor)
	m.addLog(fmt.Sprintf("Marked column %d (%.1f nm on current mapping)", m.cursor, m.cal.WavelengthAt(m.cursor)))
}

func (m *spectroModel) beginCalibration() tea.Cmd {
	if len(m.recorded) == 0 {
		m.addLog("No points recorded; press m then p to mark known peaks first")
		return nil
	}
	ti := textinput.New()
	ti.Placeholder = "e.g. 436,546.1,611.6"
	ti.CharLimit = 120
	ti.Width = 40
	m.calInput = ti
	m.calibrating = true
	return m.calInput.Focus()
}

func (m *spectroModel) finishCalibration() {
	fields := strings.Split(strings.TrimSpace(m.calInput.Value()), ",")
	if len(fields) != len(m.recorded) {
		m.addLog(fmt.Sprintf("Need %d wavelengths, got %d", len(m.recorded), len(fields)))
		return
	}
	wavelengths := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			m.addLog(fmt.Sprintf("Bad wavelength %q", strings.TrimSpace(f)))
			return
		}
		wavelengths[i] = v
	}

	pixels := make([]int, len(m.recorded))
	copy(pixels, m.recorded)
	sort.Sort(byPixel{pixels, wavelengths})

	if err := spectro.SaveCalibration(spectro.CalFile, pixels, wavelengths); err != nil {
		m.addLog(fmt.Sprintf("Save calibration: %v", err))
		return
	}
	m.cal = spectro.LoadCalibration(spectro.CalFile, m.camW)
	m.grat = m.cal.Graticule()
	m.recorded = nil
	m.calibrating = false
	_, pts, order := m.cal.Status()
	m.addLog(fmt.Sprintf("Calibration applied: %s, %s", pts, order))
}

// byPixel sorts calibration point pairs by pixel column.
type byPixel struct {
	pixels      []int
	wavelengths []float64
}

func (s byPixel) Len() int           { return len(s.pixels) }
func (s byPixel) Less(i, j int) bool { return s.pixels[i] < s.pixels[j] }
func (s byPixel) Swap(i, j int) {
	s.pixels[i], s.pixels[j] = s.pixels[j], s.pixels[i]
	s.wavelengths[i], s.wavelengths[j] = s.wavelengths[j], s.wavelengths[i]
}

func (m *spectroModel) snapshot() {
	processed := spectro.Process(m.intensity, m.savpoly, m.hold)
	var wf *spectro.Waterfall
	if m.wfOn {
		wf = m.wf
	}
	res, err := spectro.SaveSnapshot(m.cmd.Dir, m.cal, processed, wf)
	if err != nil {
		m.addLog(fmt.Sprintf("Snapshot failed: %v", err))
		return
	}
	m.lastSave = res.Status
	files := filepath.Base(res.SpectrumPNG) + ", " + filepath.Base(res.CSV)
	if res.WaterfallPNG != "" {
		files += ", " + filepath.Base(res.WaterfallPNG)
	}
	m.addLog("Saved " + files)
}

func (m spectroModel) Init() tea.Cmd {
	return tea.Batch(waitForFrame(m.frames), tick())
}

func (m spectroModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.calibrating {
			switch msg.String() {
			case "enter":
				m.finishCalibration()
				return m, nil
			case "esc":
				m.calibrating = false
				m.addLog("Calibration cancelled")
				return m, nil
			default:
				var cmd tea.Cmd
				m.calInput, cmd = m.calInput.Update(msg)
				return m, cmd
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "h":
			m.hold = !m.hold
			if m.hold {
				m.addLog("Peak hold on")
			} else {
				m.addLog("Peak hold off")
			}
		case "s":
			m.snapshot()
		case "c":
			return m, m.beginCalibration()
		case "x":
			m.recorded = nil
			m.addLog("Cleared recorded points")
		case "m":
			m.measuring = !m.measuring
		case "left":
			if m.measuring {
				m.cursor = clamp(m.cursor-5, 0, m.camW-1)
			}
		case "right":
			if m.measuring {
				m.cursor = clamp(m.cursor+5, 0, m.camW-1)
			}
		case "shift+left":
			if m.measuring {
				m.cursor = clamp(m.cursor-1, 0, m.camW-1)
			}
		case "shift+right":
			if m.measuring {
				m.cursor = clamp(m.cursor+1, 0, m.camW-1)
			}
		case "p":
			m.recordPoint()
		case "o":
			m.savpoly = clamp(m.savpoly+1, 0, savpolyMax)
		case "l":
			m.savpoly = clamp(m.savpoly-1, 0, savpolyMax)
		case "i":
			m.mindist = clamp(m.mindist+1, 0, knobMax)
		case "k":
			m.mindist = clamp(m.mindist-1, 0, knobMax)
		case "u":
			m.thresh = clamp(m.thresh+1, 0, knobMax)
		case "j":
			m.thresh = clamp(m.thresh-1, 0, knobMax)
		case "w":
			m.toggleWaterfall()
		}
		return m, nil

	case frameMsg:
		f := frame(msg)
		if f.err != nil {
			m.addLog(fmt.Sprintf("Frame read failed: %v", f.err))
			return m, nil
		}
		b := f.img.Bounds()
		row := m.cmd.Row
		if row < 0 || row >= b.Dy() {
			row = b.Dy() / 2
		}
		fresh := spectro.ColumnIntensity(f.img, b.Min.Y+row)
		if f.release != nil {
			f.release()
		}
		if len(fresh) != m.camW {
			m.setWidth(len(fresh))
		}
		spectro.MergeIntensity(m.intensity, fresh, m.hold)
		if m.wfOn {
			m.wf.Push(spectro.Process(m.intensity, m.savpoly, m.hold), m.cal)
		}
		m.meter.Tick(time.Now())
		return m, waitForFrame(m.frames)

	case tickMsg:
		return m, tick()
	}

	return m, nil
}

func (m spectroModel) chartCols() int {
	cols := m.width - 4
	if cols < 40 {
		cols = 40
	}
	return cols
}

func (m spectroModel) chartRows() int {
	rows := m.height - 20
	if rows < 8 {
		rows = 8
	}
	if rows > 20 {
		rows = 20
	}
	return rows
}

// bucket maps a camera column to a chart column.
func bucket(px, camW, cols int) int {
	b := px * cols / camW
	return clamp(b, 0, cols-1)
}

// columnStyles precomputes one foreground style per chart column from
// the wavelength at the bucket centre.
func (m spectroModel) columnStyles(cols int) []lipgloss.Style {
	styles := make([]lipgloss.Style, cols)
	for j := 0; j < cols; j++ {
		centre := (2*j + 1) * m.camW / (2 * cols)
		c := spectro.WavelengthToRGB(m.cal.WavelengthAt(centre))
		styles[j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
	}
	return styles
}

func (m spectroModel) renderChart(processed []float64, peaks []int) string {
	cols := m.chartCols()
	rows := m.chartRows()
	styles := m.columnStyles(cols)

	// Per-column fill height in eighths of a row.
	levels := make([]int, cols)
	for j := 0; j < cols; j++ {
		lo := j * m.camW / cols
		hi := (j + 1) * m.camW / cols
		if hi <= lo {
			hi = lo + 1
		}
		var peak float64
		for px := lo; px < hi && px < len(processed); px++ {
			if processed[px] > peak {
				peak = processed[px]
			}
		}
		levels[j] = int(peak / 255 * float64(rows) * 8)
	}

	marker := make([]rune, cols)
	for j := range marker {
		marker[j] = ' '
	}
	for _, px := range peaks {
		marker[bucket(px, m.camW, cols)] = '▼'
	}
	if m.measuring {
		marker[bucket(m.cursor, m.camW, cols)] = '│'
	}

	var sb strings.Builder
	cur := bucket(m.cursor, m.camW, cols)
	for j, r := range marker {
		switch {
		case m.measuring && j == cur:
			sb.WriteString(cursorStyle.Render(string(r)))
		case r == '▼':
			sb.WriteString(styles[j].Render(string(r)))
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteString("\n")

	for r := 0; r < rows; r++ {
		floor := (rows - 1 - r) * 8
		for j := 0; j < cols; j++ {
			level := levels[j] - floor
			switch {
			case level <= 0:
				sb.WriteByte(' ')
			case level >= 8:
				sb.WriteString(styles[j].Render("█"))
			default:
				sb.WriteString(styles[j].Render(string(blockRunes[level-1])))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderAxis(cols))
	return sb.String()
}

// renderAxis draws the graticule: dots every 10nm, labelled marks every
// 50nm.
func (m spectroModel) renderAxis(cols int) string {
	axis := make([]rune, cols)
	for j := range axis {
		axis[j] = ' '
	}
	for _, px := range m.grat.Tens {
		axis[bucket(px, m.camW, cols)] = '·'
	}
	for _, f := range m.grat.Fifties {
		axis[bucket(f.Pixel, m.camW, cols)] = '┼'
	}

	labels := make([]rune, cols)
	for j := range labels {
		labels[j] = ' '
	}
	for _, f := range m.grat.Fifties {
		text := strconv.Itoa(f.Wavelength)
		at := bucket(f.Pixel, m.camW, cols) - len(text)/2
		at = clamp(at, 0, cols-len(text))
		overlaps := false
		for i := at; i > 0 && i > at-2; i-- {
			if labels[i-1] != ' ' {
				overlaps = true
			}
		}
		if overlaps {
			continue
		}
		copy(labels[at:], []rune(text))
	}

	return dimStyle.Render(string(axis)) + "\n" + dimStyle.Render(string(labels))
}

// renderWaterfall shows the newest history rows as coloured cells.
func (m spectroModel) renderWaterfall() string {
	cols := m.chartCols()
	img := m.wf.Image()
	var sb strings.Builder
	for y := 0; y < waterfallView && y < img.Bounds().Dy(); y++ {
		for j := 0; j < cols; j++ {
			centre := (2*j + 1) * m.camW / (2 * cols)
			c := img.RGBAAt(centre, y)
			style := lipgloss.NewStyle().Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
			sb.WriteString(style.Render(" "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m spectroModel) View() string {
	if m.quitting {
		return "Spectrometer stopped.\n"
	}

	processed := spectro.Process(m.intensity, m.savpoly, m.hold)
	peaks := spectro.DetectPeaks(processed, m.thresh, m.mindist)

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Soilrig Spectro"))
	sb.WriteString(fmt.Sprintf(" - %s", m.cam.Label()))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  [%dx%d]  %.1f fps", m.camW, m.cam.Format().Height, m.meter.FPS())))
	sb.WriteString("\n")

	status, pts, order := m.cal.Status()
	if m.cal.Placeholder {
		sb.WriteString(uncalStyle.Render(status))
	} else {
		sb.WriteString(successStyle.Render(status))
	}
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %s | %s", pts, order)))
	sb.WriteString(fmt.Sprintf("   Savgol: %d  MinDist: %d  Thresh: %d", m.savpoly, m.mindist, m.thresh))
	sb.WriteString("\n")

	var flags []string
	if m.hold {
		flags = append(flags, successStyle.Render("[HOLD]"))
	}
	if m.measuring {
		flags = append(flags, cursorStyle.Render(fmt.Sprintf("[CURSOR %d px %.1f nm]", m.cursor, m.cal.WavelengthAt(m.cursor))))
	}
	if len(m.recorded) > 0 {
		flags = append(flags, fmt.Sprintf("[%d points marked]", len(m.recorded)))
	}
	if m.wfOn {
		flags = append(flags, "[WATERFALL]")
	}
	if m.lastSave != "" {
		flags = append(flags, dimStyle.Render(m.lastSave))
	}
	if len(peaks) > 0 {
		labels := make([]string, 0, len(peaks))
		for _, px := range peaks {
			labels = append(labels, fmt.Sprintf("%.1f", m.cal.WavelengthAt(px)))
		}
		flags = append(flags, dimStyle.Render("Peaks: "+strings.Join(labels, " ")+" nm"))
	}
	sb.WriteString(strings.Join(flags, "  "))
	sb.WriteString("\n")

	sb.WriteString(m.renderChart(processed, peaks))
	sb.WriteString("\n")

	if m.wfOn {
		sb.WriteString(m.renderWaterfall())
	}

	if m.calibrating {
		pixels := make([]string, len(m.recorded))
		for i, px := range m.recorded {
			pixels[i] = strconv.Itoa(px)
		}
		sb.WriteString(fmt.Sprintf("Wavelengths (nm) for columns %s: ", strings.Join(pixels, ", ")))
		sb.WriteString(m.calInput.View())
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("enter apply | esc cancel"))
		sb.WriteString("\n")
	} else {
		var logLines string
		if len(m.logs) == 0 {
			logLines = dimStyle.Render("h hold | m cursor | p mark | c calibrate | s save")
		} else {
			logLines = strings.Join(m.logs, "\n")
		}
		width := m.width - 4
		if width < 40 {
			width = 40
		}
		sb.WriteString(boxStyle.Width(width).Render(logLines))
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("o/l smoothing | i/k peak dist | u/j threshold | w waterfall | x clear | q quit"))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (c *SpectroCommand) Execute(args []string) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create %s: %v\n", c.Dir, err)
		os.Exit(1)
	}

	cam, err := camera.Open(camera.Config{
		Index:     c.Index,
		Label:     c.Device,
		Width:     c.Width,
		Height:    c.Height,
		FrameRate: float32(c.FPS),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open camera: %v\n", err)
		os.Exit(1)
	}
	defer cam.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frames := make(chan frame, 1)
	go pumpFrames(ctx, cam, frames)

	p := tea.NewProgram(initialSpectroModel(*c, cam, frames), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		log.Fatalf("Error running program: %v", err)
	}
	return nil
}
