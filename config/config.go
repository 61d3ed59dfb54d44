package config

import (
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
	"github.com/pkg/errors"
)

type InputSource struct {
	Type string `fig:"type" default:"receiver"`
	Name string `fig:"name" validate:"required"`

	SourceName  string `fig:"source_name"`
	MachineName string `fig:"machine_name"`
	StreamName  string `fig:"stream_name"`
	URL         string `fig:"url"`
	Bandwidth   string `fig:"bandwidth" default:"highest"`
	MuteAudio   bool   `fig:"mute_audio"`
	MuteVideo   bool   `fig:"mute_video"`

	FlipAlpha    bool `fig:"flip_alpha"`
	SRGBToLinear bool `fig:"srgb_to_linear"`

	// Channels the receiver's audio is remixed to for the recorder
	Channels int    `fig:"channels" default:"2"`
	Record   string `fig:"record"`
	Timecode bool   `fig:"timecode"`
}

type OutputSource struct {
	Type string `fig:"type" validate:"required"`
	Name string `fig:"name" validate:"required"`

	Address string `fig:"address"`

	// relay
	Input string `fig:"input"`

	// testpattern
	Text   string `fig:"text"`
	Width  int    `fig:"width"`
	Height int    `fig:"height"`

	Alpha        bool    `fig:"alpha"`
	AlphaMin     float64 `fig:"alpha_min"`
	AlphaMax     float64 `fig:"alpha_max" default:"1"`
	LinearToSRGB bool    `fig:"linear_to_srgb"`
	PTZ          bool    `fig:"ptz"`
	NoAudio      bool    `fig:"no_audio"`
}

type Config struct {
	Transport struct {
		Type    string `fig:"type" default:"loopback"`
		Machine string `fig:"machine"`

		// rtp transport

		Bind      string            `fig:"bind" default:":5960"`
		MTU       int               `fig:"mtu" default:"1200"`
		KeepAlive time.Duration     `fig:"keep_alive" default:"500ms"`
		Timeout   time.Duration     `fig:"timeout" default:"2s"`
		Peers     map[string]string `fig:"peers"`
	}

	Input struct {
		Sources []InputSource `fig:"sources"`
	}

	Output struct {
		Sources []OutputSource `fig:"sources"`
	}

	Metadata struct {
		MaxPerTick int    `fig:"max_per_tick" default:"32"`
		QueueSize  int    `fig:"queue_size" default:"64"`
		DropPolicy string `fig:"drop_policy" default:"drop_oldest"`
	}

	Broadcast struct {
		Name         string `fig:"name" default:"Unreal Engine"`
		Width        int    `fig:"width" default:"1920"`
		Height       int    `fig:"height" default:"1080"`
		FrameRateNum int    `fig:"frame_rate_num" default:"60"`
		FrameRateDen int    `fig:"frame_rate_den" default:"1"`
	}

	Control struct {
		LogLevel   string `fig:"log_level" default:"info"`
		RenderRate int    `fig:"render_rate" default:"60"`
		GameRate   int    `fig:"game_rate" default:"60"`

		HTTPAddress    string `fig:"http_address" default:":8080"`
		HTTPServerType string `fig:"http_server_type"`
		HTTPSHostname  string `fig:"https_hostname"`
		HTTPSCert      string `fig:"https_cert"`
		HTTPSKey       string `fig:"https_key"`
	}
}

// Load reads path, which defaults to config.toml in the working
// directory.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = "config.toml"
	}
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	if err := fig.Load(&cfg, fig.File(file), fig.Dirs(dir)); err != nil {
		return cfg, errors.Wrapf(err, "load %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (cfg Config) Validate() error {
	switch cfg.Transport.Type {
	case "loopback", "rtp":
	default:
		return errors.Wrapf(ErrInvalid, "transport type %q", cfg.Transport.Type)
	}
	if cfg.Metadata.MaxPerTick <= 0 {
		return errors.Wrapf(ErrInvalid, "metadata max_per_tick %d", cfg.Metadata.MaxPerTick)
	}
	if cfg.Control.RenderRate <= 0 || cfg.Control.GameRate <= 0 {
		return errors.Wrap(ErrInvalid, "tick rates must be positive")
	}

	inputs := make(map[string]bool)
	for _, src := range cfg.Input.Sources {
		if inputs[src.Name] {
			return errors.Wrapf(ErrInvalid, "duplicate input %q", src.Name)
		}
		inputs[src.Name] = true
	}
	for _, out := range cfg.Output.Sources {
		if out.Type == "relay" && !inputs[out.Input] {
			return errors.Wrapf(ErrInvalid, "relay %q references unknown input %q", out.Name, out.Input)
		}
	}
	return nil
}
