package main

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lusi-lab/soilrig/pkg/camera"
	"github.com/lusi-lab/soilrig/pkg/gnss"
	"github.com/lusi-lab/soilrig/pkg/rig"
)

type CameraCommand struct {
	Index    int     `long:"index" default:"0" description:"Camera position in the scan list"`
	Device   string  `long:"device" description:"Substring of the camera label, overrides --index"`
	Width    int     `long:"width" default:"1280" description:"Requested frame width"`
	Height   int     `long:"height" default:"720" description:"Requested frame height"`
	FPS      float64 `long:"fps" default:"30" description:"Requested frame rate"`
	SaveDir  string  `long:"save-dir" description:"Capture directory (default Camera_Captures)"`
	Record   bool    `long:"record" description:"Start recording immediately"`
	GNSSPort string  `long:"gnss-port" description:"GNSS serial port, or 'auto' to scan for one"`
	GNSSBaud int     `long:"gnss-baud" default:"9600" description:"GNSS port baud rate"`
	HFOV     float64 `long:"hfov" description:"Horizontal field of view in degrees, for ground scale"`
	Alt      float64 `long:"alt" description:"Height above ground in metres, overrides the GNSS altitude"`
	MPP      float64 `long:"mpp" description:"Metres per pixel, overrides the field-of-view estimate"`
	Scale    bool    `long:"scale" description:"Burn a scale bar into captured stills"`
}

var recStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

// frame is one capture with its buffer release callback. The err field
// carries a stream failure to the update loop.
type frame struct {
	img     image.Image
	release func()
	err     error
}

type frameMsg frame

// pumpFrames reads the camera as fast as it delivers and keeps only the
// newest frame in the mailbox, releasing the ones the TUI never saw.
func pumpFrames(ctx context.Context, cam *camera.Device, frames chan frame) {
	for ctx.Err() == nil {
		img, release, err := cam.Read()
		f := frame{img: img, release: release, err: err}
		select {
		case frames <- f:
		default:
			select {
			case old := <-frames:
				if old.release != nil {
					old.release()
				}
			default:
			}
			frames <- f
		}
		if err != nil {
			return
		}
	}
}

func waitForFrame(frames chan frame) tea.Cmd {
	return func() tea.Msg {
		return frameMsg(<-frames)
	}
}

func cloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

type cameraModel struct {
	cmd      CameraCommand
	cam      *camera.Device
	gps      *gnss.Reader // nil without a GNSS port
	frames   chan frame
	photoDir string
	videoDir string
	hfov     float64

	meter    camera.RateMeter
	last     image.Image
	release  func()
	frameW   int
	frameH   int
	frameN   int
	rec      *camera.Recorder
	recStart time.Time
	logs     []string
	width    int
	height   int
	quitting bool
}

func initialCameraModel(cmd CameraCommand, cam *camera.Device, gps *gnss.Reader, frames chan frame, photoDir, videoDir string, hfov float64) cameraModel {
	f := cam.Format()
	return cameraModel{
		cmd:      cmd,
		cam:      cam,
		gps:      gps,
		frames:   frames,
		photoDir: photoDir,
		videoDir: videoDir,
		hfov:     hfov,
		frameW:   f.Width,
		frameH:   f.Height,
	}
}

func (m *cameraModel) addLog(msg string) {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// groundScale resolves metres per pixel for the current frame. A manual
// height wins over the GNSS altitude.
func (m *cameraModel) groundScale() (mpp, alt float64) {
	alt = m.cmd.Alt
	if alt == 0 && m.gps != nil {
		if fix, ok := m.gps.Fix(); ok && fix.Valid {
			alt = fix.AltMSL
		}
	}
	return camera.EstimateMPP(m.frameW, alt, m.hfov, m.cmd.MPP), alt
}

func (m *cameraModel) meta(codec string) camera.Meta {
	meta := camera.Meta{
		Index:        m.cmd.Index,
		RequestedFPS: m.cmd.FPS,
		MeasuredFPS:  m.meter.FPS(),
		Codec:        codec,
	}
	if m.gps != nil {
		if fix, ok := m.gps.Fix(); ok {
			meta.Fix = &fix
		}
	}
	if m.cmd.Scale {
		mpp, alt := m.groundScale()
		meta.MPP = mpp
		meta.AltM = alt
		meta.HFOVDeg = m.hfov
	}
	return meta
}

func (m *cameraModel) capture() {
	if m.last == nil {
		m.addLog("No frame yet")
		return
	}
	img := m.last
	meta := m.meta("")
	if m.cmd.Scale && meta.MPP > 0 {
		stamped := cloneRGBA(img)
		camera.DrawScaleBar(stamped, meta.MPP)
		img = stamped
	}
	path, err := camera.SaveStill(m.photoDir, img, meta)
	if err != nil {
		m.addLog(fmt.Sprintf("Capture failed: %v", err))
		return
	}
	size := ""
	if fi, err := os.Stat(path); err == nil {
		size = " (" + humanize.Bytes(uint64(fi.Size())) + ")"
	}
	m.addLog(fmt.Sprintf("Saved %s%s", filepath.Base(path), size))
}

func (m *cameraModel) toggleRecording() {
	if m.rec != nil {
		m.stopRecording()
		return
	}
	rec, err := camera.StartRecording(m.videoDir, m.frameW, m.frameH, m.meta("MJPG"))
	if err != nil {
		m.addLog(fmt.Sprintf("Recording failed: %v", err))
		return
	}
	m.rec = rec
	m.recStart = time.Now()
	m.addLog(fmt.Sprintf("Recording %s", filepath.Base(rec.Path())))
}

func (m *cameraModel) stopRecording() {
	rec := m.rec
	m.rec = nil
	if err := rec.Stop(m.meter.FPS()); err != nil {
		m.addLog(fmt.Sprintf("Stop recording: %v", err))
		return
	}
	size := ""
	if fi, err := os.Stat(rec.Path()); err == nil {
		size = ", " + humanize.Bytes(uint64(fi.Size()))
	}
	m.addLog(fmt.Sprintf("Saved %s (%d frames%s)", filepath.Base(rec.Path()), rec.Frames(), size))
}

func (m cameraModel) Init() tea.Cmd {
	return tea.Batch(waitForFrame(m.frames), tick())
}

func (m cameraModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.rec != nil {
				m.stopRecording()
			}
			m.quitting = true
			return m, tea.Quit
		case "c":
			m.capture()
		case "r":
			m.toggleRecording()
		}
		return m, nil

	case frameMsg:
		f := frame(msg)
		if f.err != nil {
			m.addLog(fmt.Sprintf("Frame read failed: %v", f.err))
			return m, nil
		}
		if m.release != nil {
			m.release()
		}
		m.last = f.img
		m.release = f.release
		b := f.img.Bounds()
		m.frameW, m.frameH = b.Dx(), b.Dy()
		m.frameN++
		m.meter.Tick(time.Now())
		if m.cmd.Record && m.rec == nil && m.frameN == 1 {
			m.toggleRecording()
		}
		if m.rec != nil {
			if err := m.rec.WriteFrame(f.img); err != nil {
				m.addLog(fmt.Sprintf("Recording write failed: %v", err))
				m.stopRecording()
			}
		}
		return m, waitForFrame(m.frames)

	case tickMsg:
		// Keeps the GNSS line fresh when the stream stalls.
		return m, tick()
	}

	return m, nil
}

func (m cameraModel) gnssLine() string {
	if m.gps == nil {
		return dimStyle.Render("GNSS: off")
	}
	fix, ok := m.gps.Fix()
	if !ok {
		return dimStyle.Render("GNSS: waiting for data")
	}
	if !fix.Valid {
		return dimStyle.Render(fmt.Sprintf("GNSS: no fix (%d sats)", fix.Sats))
	}
	return successStyle.Render(fmt.Sprintf("GNSS: %.5f, %.5f", fix.Lat, fix.Lon)) +
		fmt.Sprintf("  alt %.1f m  %d sats  hdop %.1f", fix.AltMSL, fix.Sats, fix.HDOP)
}

func (m cameraModel) scaleLine() string {
	if !m.cmd.Scale {
		return dimStyle.Render("Scale: off")
	}
	mpp, alt := m.groundScale()
	label := camera.FormatMPP(mpp)
	if label == "" {
		return dimStyle.Render("Scale: need --hfov and a height (or --mpp)")
	}
	return label + dimStyle.Render(fmt.Sprintf("  (height %.1f m)", alt))
}

func (m cameraModel) View() string {
	if m.quitting {
		return "Camera stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Soilrig Camera"))
	sb.WriteString(fmt.Sprintf(" - %s", m.cam.Label()))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  [%dx%d]", m.frameW, m.frameH)))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("FPS: %.1f", m.meter.FPS()))
	sb.WriteString(dimStyle.Render(fmt.Sprintf(" (requested %g)", m.cmd.FPS)))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  frames: %d", m.frameN)))
	if m.rec != nil {
		sb.WriteString("  ")
		sb.WriteString(recStyle.Render(fmt.Sprintf("REC %s", time.Since(m.recStart).Round(time.Second))))
		sb.WriteString(dimStyle.Render(fmt.Sprintf(" %d frames", m.rec.Frames())))
	}
	sb.WriteString("\n")
	sb.WriteString(m.gnssLine())
	sb.WriteString("\n")
	sb.WriteString(m.scaleLine())
	sb.WriteString("\n\n")

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	var logLines string
	if len(m.logs) == 0 {
		logLines = dimStyle.Render("No captures yet")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(boxStyle.Width(width).Render(logLines))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("c capture | r record | q quit"))
	sb.WriteString("\n")

	return sb.String()
}

func (c *CameraCommand) Execute(args []string) error {
	cfg, err := rig.LoadConfig()
	if err != nil {
		cfg = rig.DefaultConfig()
	}

	saveDir := c.SaveDir
	if saveDir == "" {
		saveDir = cfg.Camera.SaveDir
	}
	if saveDir == "" {
		saveDir = "Camera_Captures"
	}
	photoDir := filepath.Join(saveDir, "photos")
	videoDir := filepath.Join(saveDir, "videos")
	for _, dir := range []string{photoDir, videoDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	hfov := c.HFOV
	if hfov == 0 {
		hfov = cfg.Camera.HFOVDeg
	}

	port := c.GNSSPort
	if port == "" {
		port = cfg.Camera.GNSSPort
	}
	if port == "auto" {
		found, err := gnss.DetectPort(c.GNSSBaud, 2*time.Second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "GNSS auto-detect: %v; captures will not be geotagged\n", err)
			port = ""
		} else {
			fmt.Printf("GNSS talker found on %s\n", found)
			port = found
		}
	}
	var gps *gnss.Reader
	if port != "" {
		gps, err = gnss.Open(port, c.GNSSBaud)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v; captures will not be geotagged\n", err)
		}
	}
	if gps != nil {
		defer gps.Close()
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

	model := initialCameraModel(*c, cam, gps, frames, photoDir, videoDir, hfov)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		log.Fatalf("Error running program: %v", err)
	}

	// Close out a recording cut short by an interrupt so its sidecar
	// still gets written.
	if cm, ok := final.(cameraModel); ok && cm.rec != nil {
		rec := cm.rec
		if err := rec.Stop(cm.meter.FPS()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else {
			fmt.Printf("Recording saved to %s\n", rec.Path())
		}
	}
	return nil
}
