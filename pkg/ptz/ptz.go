// Package ptz lets receivers steer a sender's camera with the pan, tilt,
// zoom, focus and preset messages they send upstream.
package ptz

import (
	"math"
	"sync"
	"time"

	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/metadata"
	"github.com/Glimesh/ndiio/pkg/sender"
	"github.com/sirupsen/logrus"
)

const (
	MaxPresets = 256

	minFieldOfView = 5.0
	maxFieldOfView = 170.0
)

// State is a camera pose. Pan and Tilt are radians, FieldOfView degrees.
type State struct {
	Pan           float64 `json:"pan"`
	Tilt          float64 `json:"tilt"`
	FieldOfView   float64 `json:"field_of_view"`
	FocusDistance float64 `json:"focus_distance"`
	AutoFocus     bool    `json:"auto_focus"`
}

// Controllable is implemented by anything that owns a camera pose.
type Controllable interface {
	PTZState() State
	SetPTZState(State)
}

// Lookup reports whether v can be steered.
func Lookup(v interface{}) (Controllable, bool) {
	c, ok := v.(Controllable)
	return c, ok
}

// Limits are in degrees.
type Options struct {
	Enabled bool

	PanLimit  bool
	PanMin    float64
	PanMax    float64
	PanInvert bool

	TiltLimit  bool
	TiltMin    float64
	TiltMax    float64
	TiltInvert bool

	FieldOfViewLimit bool
	FieldOfViewMin   float64
	FieldOfViewMax   float64

	// RecallEasing is how long a preset recall takes. Zero jumps.
	RecallEasing time.Duration
}

func DefaultOptions() Options {
	return Options{
		Enabled:        true,
		PanMin:         -180,
		PanMax:         180,
		PanInvert:      true,
		TiltLimit:      true,
		TiltMin:        -90,
		TiltMax:        90,
		FieldOfViewMin: minFieldOfView,
		FieldOfViewMax: maxFieldOfView,
		RecallEasing:   2 * time.Second,
	}
}

type easing struct {
	target    State
	duration  float64
	remaining float64
}

// Controller integrates speed commands into a Controllable on every Tick
// and stores and recalls presets.
type Controller struct {
	target Controllable
	opts   Options
	router *metadata.Router
	log    logrus.FieldLogger

	mu        sync.Mutex
	panSpeed  float64
	tiltSpeed float64
	zoomSpeed float64
	presets   []State
	interp    easing

	onPanTiltSpeed control.Observers[func(pan, tilt float64)]
	onZoomSpeed    control.Observers[func(zoom float64)]
	onFocus        control.Observers[func(auto bool, distance float64)]
	onStore        control.Observers[func(index int)]
	onRecall       control.Observers[func(index int)]
}

func NewController(target Controllable, opts Options) *Controller {
	c := &Controller{
		target: target,
		opts:   opts,
		router: metadata.NewRouter(),
		log:    logrus.StandardLogger(),
	}

	c.router.HandleAttributes("ntk_ptz_pan_tilt_speed", func(attrs map[string]string) {
		c.SetPanTiltSpeed(metadata.Float(attrs["pan_speed"], 0), metadata.Float(attrs["tilt_speed"], 0))
	})
	c.router.HandleAttributes("ntk_ptz_zoom_speed", func(attrs map[string]string) {
		c.SetZoomSpeed(metadata.Float(attrs["zoom_speed"], 0))
	})
	c.router.HandleAttributes("ntk_ptz_focus", func(attrs map[string]string) {
		c.SetFocus(attrs["mode"] != "manual", metadata.Float(attrs["distance"], 0.5))
	})
	c.router.HandleAttributes("ntk_ptz_store_preset", func(attrs map[string]string) {
		if i := metadata.Int(attrs["index"], -1); i >= 0 {
			c.StorePreset(i)
		}
	})
	c.router.HandleAttributes("ntk_ptz_recall_preset", func(attrs map[string]string) {
		if i := metadata.Int(attrs["index"], -1); i >= 0 {
			c.RecallPreset(i)
		}
	})
	return c
}

func (c *Controller) SetLogger(log logrus.FieldLogger) {
	c.log = log
}

// Attach feeds the metadata s receives from its receivers into the
// controller.
func (c *Controller) Attach(s *sender.Sender) control.Handle {
	return s.OnMetadataReceived(func(_ *sender.Sender, data string) {
		if err := c.HandleMetadata(data); err != nil {
			c.log.WithError(err).Debug("Ignoring malformed PTZ metadata")
		}
	})
}

func (c *Controller) HandleMetadata(data string) error {
	return c.router.Parse(data)
}

func (c *Controller) SetPanTiltSpeed(pan, tilt float64) {
	c.mu.Lock()
	c.panSpeed, c.tiltSpeed = pan, tilt
	c.mu.Unlock()
	c.onPanTiltSpeed.Each(func(fn func(float64, float64)) { fn(pan, tilt) })
}

func (c *Controller) SetZoomSpeed(zoom float64) {
	c.mu.Lock()
	c.zoomSpeed = zoom
	c.mu.Unlock()
	c.onZoomSpeed.Each(func(fn func(float64)) { fn(zoom) })
}

func (c *Controller) SetFocus(auto bool, distance float64) {
	c.mu.Lock()
	st := c.target.PTZState()
	st.AutoFocus = auto
	st.FocusDistance = distance
	c.apply(st)
	c.mu.Unlock()
	c.onFocus.Each(func(fn func(bool, float64)) { fn(auto, distance) })
}

// StorePreset saves the current pose at index, which must be below
// MaxPresets.
func (c *Controller) StorePreset(index int) {
	if index < 0 || index >= MaxPresets {
		return
	}
	c.mu.Lock()
	if index >= len(c.presets) {
		grown := make([]State, index+1)
		copy(grown, c.presets)
		c.presets = grown
	}
	c.presets[index] = c.target.PTZState()
	c.mu.Unlock()
	c.onStore.Each(func(fn func(int)) { fn(index) })
}

// RecallPreset moves to a stored pose, easing over RecallEasing. Unknown
// indexes are ignored but still reported to observers.
func (c *Controller) RecallPreset(index int) {
	c.mu.Lock()
	if index >= 0 && index < len(c.presets) {
		if d := c.opts.RecallEasing.Seconds(); d > 0 {
			c.interp = easing{target: c.presets[index], duration: d, remaining: d}
		} else {
			c.apply(c.presets[index])
		}
	}
	c.mu.Unlock()
	c.onRecall.Each(func(fn func(int)) { fn(index) })
}

func (c *Controller) Presets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.presets)
}

// Speeds returns the pan, tilt and zoom speeds last commanded.
func (c *Controller) Speeds() (pan, tilt, zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panSpeed, c.tiltSpeed, c.zoomSpeed
}

// ease interpolates from 0 to 1 with zero velocity and acceleration at
// the end.
func ease(f float64) float64 {
	return f*f*f - 3*f*f + 3*f
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Tick advances easing and integrates the commanded speeds over dt.
func (c *Controller) Tick(dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interp.remaining <= 0 && c.panSpeed == 0 && c.tiltSpeed == 0 && c.zoomSpeed == 0 {
		return
	}

	delta := dt.Seconds()
	st := c.target.PTZState()

	if c.interp.remaining > 0 {
		step := math.Min(c.interp.remaining, delta)
		t := ease(step / c.interp.remaining)
		goal := c.interp.target
		st.Pan = lerp(st.Pan, goal.Pan, t)
		st.Tilt = lerp(st.Tilt, goal.Tilt, t)
		st.FieldOfView = lerp(st.FieldOfView, goal.FieldOfView, t)
		st.FocusDistance = lerp(st.FocusDistance, goal.FocusDistance, t)
		if t >= 1 {
			st.AutoFocus = goal.AutoFocus
		}
		c.interp.remaining -= step
	}

	st.FieldOfView -= c.zoomSpeed * 180 / math.Pi * delta
	if c.opts.FieldOfViewLimit {
		st.FieldOfView = clamp(st.FieldOfView, c.opts.FieldOfViewMin, c.opts.FieldOfViewMax)
	}
	st.FieldOfView = clamp(st.FieldOfView, minFieldOfView, maxFieldOfView)

	scale := st.FieldOfView / 90

	pan := c.panSpeed * delta * scale
	if c.opts.PanInvert {
		pan = -pan
	}
	st.Pan = math.Mod(st.Pan+pan, 2*math.Pi)
	if c.opts.PanLimit {
		st.Pan = clamp(st.Pan, radians(c.opts.PanMin), radians(c.opts.PanMax))
	}

	tilt := c.tiltSpeed * delta * scale
	if c.opts.TiltInvert {
		tilt = -tilt
	}
	st.Tilt = math.Mod(st.Tilt+tilt, 2*math.Pi)
	if c.opts.TiltLimit {
		st.Tilt = clamp(st.Tilt, radians(c.opts.TiltMin), radians(c.opts.TiltMax))
	}

	c.apply(st)
}

// apply writes st to the target when control is enabled. c.mu is held.
func (c *Controller) apply(st State) {
	if c.opts.Enabled {
		c.target.SetPTZState(st)
	}
}

func (c *Controller) OnPanTiltSpeed(fn func(pan, tilt float64)) control.Handle {
	return c.onPanTiltSpeed.Add(fn)
}

func (c *Controller) OnZoomSpeed(fn func(zoom float64)) control.Handle {
	return c.onZoomSpeed.Add(fn)
}

func (c *Controller) OnFocus(fn func(auto bool, distance float64)) control.Handle {
	return c.onFocus.Add(fn)
}

func (c *Controller) OnStore(fn func(index int)) control.Handle {
	return c.onStore.Add(fn)
}

func (c *Controller) OnRecall(fn func(index int)) control.Handle {
	return c.onRecall.Add(fn)
}
