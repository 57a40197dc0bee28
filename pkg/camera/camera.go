// Package camera captures stills and video from the survey drone's
// nadir camera and stamps them with position and ground scale.
package camera

import (
	"image"
	"strings"

	driverutils "github.com/pion/mediadevices/pkg/driver"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
)

// Default capture shape when the config leaves it open.
const (
	DefaultWidth     = 1280
	DefaultHeight    = 720
	DefaultFrameRate = 30
)

// Config selects and shapes the capture device.
type Config struct {
	Index     int    // position in the enumerated driver list
	Label     string // substring match on the driver label, wins over Index
	Width     int
	Height    int
	FrameRate float32
}

// Device is a claimed capture device with a running frame stream.
type Device struct {
	driver driverutils.Driver
	reader video.Reader
	label  string
	format prop.Media
}

// Open claims a capture device and starts its frame stream.
func Open(conf Config) (*Device, error) {
	mediadevicescamera.Initialize()
	drivers := driverutils.GetManager().Query(driverutils.FilterVideoRecorder())
	if len(drivers) == 0 {
		return nil, errors.New("no capture devices found")
	}

	d, err := pickDriver(drivers, conf)
	if err != nil {
		return nil, err
	}
	rec, ok := d.(driverutils.VideoRecorder)
	if !ok {
		return nil, errors.Errorf("%s cannot record video", driverLabel(d))
	}
	if err := d.Open(); err != nil {
		return nil, errors.Wrapf(err, "open %s", driverLabel(d))
	}

	format := pickFormat(d.Properties(), conf)
	reader, err := rec.VideoRecord(format)
	if err != nil {
		if closeErr := d.Close(); closeErr != nil {
			err = errors.Wrapf(err, "also failed to close: %v", closeErr)
		}
		return nil, errors.Wrapf(err, "start stream on %s", driverLabel(d))
	}

	return &Device{driver: d, reader: reader, label: driverLabel(d), format: format}, nil
}

// Read returns the next frame. The release func must be called once
// the frame is no longer needed.
func (d *Device) Read() (image.Image, func(), error) {
	img, release, err := d.reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "read frame")
	}
	if release == nil {
		release = func() {}
	}
	return img, release, nil
}

// Label returns the device path or label reported by the driver.
func (d *Device) Label() string { return d.label }

// Format returns the negotiated stream format.
func (d *Device) Format() prop.Media { return d.format }

// Close stops the stream and releases the device.
func (d *Device) Close() error { return d.driver.Close() }

// pickDriver resolves the config to one of the enumerated drivers. A
// label substring match wins over the index.
func pickDriver(drivers []driverutils.Driver, conf Config) (driverutils.Driver, error) {
	if conf.Label != "" {
		want := strings.ToLower(conf.Label)
		for _, d := range drivers {
			if strings.Contains(strings.ToLower(d.Info().Label), want) {
				return d, nil
			}
		}
		return nil, errors.Errorf("no capture device matches %q", conf.Label)
	}
	if conf.Index < 0 || conf.Index >= len(drivers) {
		return nil, errors.Errorf("camera index %d out of range, found %d devices", conf.Index, len(drivers))
	}
	return drivers[conf.Index], nil
}

// pickFormat chooses the advertised format closest to the requested
// shape. USB webcams only reach full rate compressed, so MJPEG breaks
// ties.
func pickFormat(props []prop.Media, conf Config) prop.Media {
	wantW, wantH := conf.Width, conf.Height
	if wantW == 0 {
		wantW = DefaultWidth
	}
	if wantH == 0 {
		wantH = DefaultHeight
	}

	if len(props) == 0 {
		var p prop.Media
		p.Video.Width = wantW
		p.Video.Height = wantH
		p.Video.FrameRate = conf.FrameRate
		if p.Video.FrameRate == 0 {
			p.Video.FrameRate = DefaultFrameRate
		}
		return p
	}

	best := props[0]
	bestScore := formatScore(props[0], wantW, wantH)
	for _, p := range props[1:] {
		if s := formatScore(p, wantW, wantH); s < bestScore {
			best, bestScore = p, s
		}
	}
	if conf.FrameRate > 0 {
		best.Video.FrameRate = conf.FrameRate
	}
	return best
}

func formatScore(p prop.Media, wantW, wantH int) int {
	s := 2 * (abs(p.Video.Width-wantW) + abs(p.Video.Height-wantH))
	if p.Video.FrameFormat != frame.FormatMJPEG {
		s++
	}
	return s
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// driverLabel strips the priority suffix mediadevices appends to
// camera labels.
func driverLabel(d driverutils.Driver) string {
	parts := strings.Split(d.Info().Label, mediadevicescamera.LabelSeparator)
	return parts[0]
}
