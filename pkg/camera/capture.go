package camera

import (
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lusi-lab/soilrig/pkg/gnss"
)

// tsLayout renders UTC timestamps with hyphens so capture names stay
// legal on every filesystem.
const tsLayout = "2006-01-02T15-04-05.000000Z"

// jpegQuality for recorded MJPEG frames.
const jpegQuality = 90

// softwareTag identifies the writer in capture sidecars.
const softwareTag = "soilrig"

// Meta carries everything the sidecar records about a capture.
type Meta struct {
	Index        int
	RequestedFPS float64
	MeasuredFPS  float64
	Exposure     float64
	Gain         float64
	Codec        string
	Fix          *gnss.Fix
	MPP          float64
	AltM         float64
	HFOVDeg      float64
}

// Sidecar is the JSON metadata written next to every capture.
type Sidecar struct {
	TimestampUTC string  `json:"timestampUtc"`
	CameraIndex  int     `json:"cameraIndex"`
	FrameWidth   int     `json:"frameWidth"`
	FrameHeight  int     `json:"frameHeight"`
	RequestedFPS float64 `json:"requestedFps"`
	MeasuredFPS  float64 `json:"measuredFps"`
	Exposure     float64 `json:"exposure"`
	Gain         float64 `json:"gain"`
	Codec        string  `json:"codec"`
	Software     string  `json:"software"`

	GNSS  *SidecarGNSS  `json:"gnss,omitempty"`
	Scale *SidecarScale `json:"scale,omitempty"`
}

// SidecarGNSS is the position block, present only with a valid fix.
type SidecarGNSS struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	AltMSLM float64 `json:"altMslM"`
	HDOP    float64 `json:"hdop,omitempty"`
}

// SidecarScale is the ground-scale block, present only when a scale
// could be estimated.
type SidecarScale struct {
	MetersPerPixel float64 `json:"metersPerPixel"`
	AltitudeM      float64 `json:"altitudeM"`
	HFOVDeg        float64 `json:"hfovDeg"`
}

func (m Meta) sidecar(ts string, w, h int) Sidecar {
	sc := Sidecar{
		TimestampUTC: ts,
		CameraIndex:  m.Index,
		FrameWidth:   w,
		FrameHeight:  h,
		RequestedFPS: m.RequestedFPS,
		MeasuredFPS:  math.Round(m.MeasuredFPS*100) / 100,
		Exposure:     m.Exposure,
		Gain:         m.Gain,
		Codec:        m.Codec,
		Software:     softwareTag,
	}
	if m.Fix != nil && m.Fix.Valid {
		sc.GNSS = &SidecarGNSS{
			Lat:     m.Fix.Lat,
			Lon:     m.Fix.Lon,
			AltMSLM: m.Fix.AltMSL,
			HDOP:    m.Fix.HDOP,
		}
	}
	if m.MPP > 0 {
		sc.Scale = &SidecarScale{
			MetersPerPixel: m.MPP,
			AltitudeM:      m.AltM,
			HFOVDeg:        m.HFOVDeg,
		}
	}
	return sc
}

// SaveStill writes the frame as PNG with its JSON sidecar and returns
// the image path.
func SaveStill(dir string, img image.Image, meta Meta) (string, error) {
	ts := time.Now().UTC().Format(tsLayout)
	b := img.Bounds()
	base := fmt.Sprintf("IMG_%s_%dx%d", ts, b.Dx(), b.Dy())
	path := filepath.Join(dir, base+".png")

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "save still")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", errors.Wrap(err, "encode still")
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if meta.Codec == "" {
		meta.Codec = "PNG"
	}
	if err := writeSidecar(filepath.Join(dir, base+".json"), meta.sidecar(ts, b.Dx(), b.Dy())); err != nil {
		return "", err
	}
	return path, nil
}

// Recorder appends JPEG frames to a raw MJPEG stream. Concatenated
// JPEGs play back as motion JPEG.
type Recorder struct {
	f      *os.File
	path   string
	frames int
	meta   Meta
	ts     string
	w, h   int
}

// StartRecording opens VID_<timestamp>_WxH.mjpg in dir.
func StartRecording(dir string, w, h int, meta Meta) (*Recorder, error) {
	ts := time.Now().UTC().Format(tsLayout)
	path := filepath.Join(dir, fmt.Sprintf("VID_%s_%dx%d.mjpg", ts, w, h))
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "start recording")
	}
	meta.Codec = "MJPG"
	return &Recorder{f: f, path: path, meta: meta, ts: ts, w: w, h: h}, nil
}

// WriteFrame appends one frame to the stream.
func (r *Recorder) WriteFrame(img image.Image) error {
	if err := jpeg.Encode(r.f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return errors.Wrap(err, "encode frame")
	}
	r.frames++
	return nil
}

// Path returns the video file path.
func (r *Recorder) Path() string { return r.path }

// Frames returns the number of frames written.
func (r *Recorder) Frames() int { return r.frames }

// Stop closes the stream and writes the sidecar with the final
// measured rate.
func (r *Recorder) Stop(measuredFPS float64) error {
	if err := r.f.Close(); err != nil {
		return err
	}
	r.meta.MeasuredFPS = measuredFPS
	return writeSidecar(strings.TrimSuffix(r.path, ".mjpg")+".json", r.meta.sidecar(r.ts, r.w, r.h))
}

func writeSidecar(path string, sc Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
