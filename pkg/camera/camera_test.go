package camera

import (
	"testing"

	driverutils "github.com/pion/mediadevices/pkg/driver"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
)

// fakeDriver provides just enough of the driver interface for
// selection tests.
type fakeDriver struct {
	label string
	name  string
}

func (d *fakeDriver) Open() error               { return nil }
func (d *fakeDriver) Close() error              { return nil }
func (d *fakeDriver) Properties() []prop.Media  { return nil }
func (d *fakeDriver) ID() string                { return d.label }
func (d *fakeDriver) Info() driverutils.Info    { return driverutils.Info{Label: d.label, Name: d.name} }
func (d *fakeDriver) Status() driverutils.State { return driverutils.StateClosed }

func videoProp(w, h int, rate float32, f frame.Format) prop.Media {
	var p prop.Media
	p.Video.Width = w
	p.Video.Height = h
	p.Video.FrameRate = rate
	p.Video.FrameFormat = f
	return p
}

func TestPickDriverByIndex(t *testing.T) {
	drivers := []driverutils.Driver{
		&fakeDriver{label: "/dev/video0"},
		&fakeDriver{label: "/dev/video2"},
	}
	d, err := pickDriver(drivers, Config{Index: 1})
	if err != nil {
		t.Fatalf("pickDriver: %v", err)
	}
	if d.Info().Label != "/dev/video2" {
		t.Errorf("picked %s, want /dev/video2", d.Info().Label)
	}

	if _, err := pickDriver(drivers, Config{Index: 5}); err == nil {
		t.Error("out of range index accepted")
	}
}

func TestPickDriverByLabel(t *testing.T) {
	drivers := []driverutils.Driver{
		&fakeDriver{label: "/dev/video0"},
		&fakeDriver{label: "ELP USB Camera: HD 2MP" + mediadevicescamera.LabelSeparator + "usb-0000"},
	}
	d, err := pickDriver(drivers, Config{Label: "elp"})
	if err != nil {
		t.Fatalf("pickDriver: %v", err)
	}
	if got := driverLabel(d); got != "ELP USB Camera: HD 2MP" {
		t.Errorf("label = %q", got)
	}

	if _, err := pickDriver(drivers, Config{Label: "nonexistent"}); err == nil {
		t.Error("unmatched label accepted")
	}
}

func TestPickFormatPrefersClosestAndMJPEG(t *testing.T) {
	props := []prop.Media{
		videoProp(640, 480, 30, frame.FormatYUY2),
		videoProp(1280, 720, 30, frame.FormatYUY2),
		videoProp(1280, 720, 30, frame.FormatMJPEG),
		videoProp(1920, 1080, 30, frame.FormatMJPEG),
	}
	got := pickFormat(props, Config{Width: 1280, Height: 720})
	if got.Video.Width != 1280 || got.Video.FrameFormat != frame.FormatMJPEG {
		t.Errorf("picked %dx%d %s", got.Video.Width, got.Video.Height, got.Video.FrameFormat)
	}
}

func TestPickFormatOverridesRate(t *testing.T) {
	props := []prop.Media{videoProp(640, 480, 30, frame.FormatMJPEG)}
	got := pickFormat(props, Config{Width: 640, Height: 480, FrameRate: 15})
	if got.Video.FrameRate != 15 {
		t.Errorf("rate = %v, want 15", got.Video.FrameRate)
	}
}

func TestPickFormatNoAdvertisedModes(t *testing.T) {
	got := pickFormat(nil, Config{})
	if got.Video.Width != DefaultWidth || got.Video.Height != DefaultHeight {
		t.Errorf("fallback = %dx%d", got.Video.Width, got.Video.Height)
	}
	if got.Video.FrameRate != DefaultFrameRate {
		t.Errorf("rate = %v", got.Video.FrameRate)
	}
}
