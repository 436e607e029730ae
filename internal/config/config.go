package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/liveroom/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "LIVEROOM"

type Config struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int           `mapstructure:"port" validate:"min=1,max=65535"`
	Secret     string        `mapstructure:"secret" validate:"required"`
	Platform   string        `mapstructure:"platform" validate:"oneof=android ios desktop"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`

	Log     LogConfig     `mapstructure:"log"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Session SessionConfig `mapstructure:"session"`
	Capture CaptureConfig `mapstructure:"capture"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	// File enables a rotating log file next to stderr output.
	File string `mapstructure:"file"`
}

type EngineConfig struct {
	AppID      uint32   `mapstructure:"app_id" validate:"required"`
	AppSign    string   `mapstructure:"app_sign" validate:"len=64,hexadecimal"`
	Scenario   string   `mapstructure:"scenario" validate:"oneof=general communication live standard_video_call"`
	ICEServers []string `mapstructure:"ice_servers" validate:"dive,required"`
}

type SessionConfig struct {
	RoomID          string        `mapstructure:"room_id" validate:"required,max=128"`
	UserID          string        `mapstructure:"user_id" validate:"max=64"`
	Username        string        `mapstructure:"username" validate:"max=256"`
	StreamID        string        `mapstructure:"stream_id" validate:"required,max=256"`
	PlayStreamID    string        `mapstructure:"play_stream_id" validate:"max=256"`
	ViewMode        string        `mapstructure:"view_mode" validate:"oneof=aspect_fit aspect_fill scale_to_fill"`
	BackgroundColor uint32        `mapstructure:"background_color"`
	SurfaceTimeout  time.Duration `mapstructure:"surface_timeout" validate:"gte=0"`
	MaxMembers      uint32        `mapstructure:"max_members"`
	AutoMount       bool          `mapstructure:"auto_mount"`
	GrantCamera     bool          `mapstructure:"grant_camera"`
	GrantMicrophone bool          `mapstructure:"grant_microphone"`
	FrontCamera     bool          `mapstructure:"front_camera"`
}

type CaptureConfig struct {
	FPS int `mapstructure:"fps" validate:"min=1,max=60"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "liveroom-dev-secret")
	v.SetDefault("platform", "desktop")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("engine.app_id", 1)
	v.SetDefault("engine.app_sign", strings.Repeat("0", 64))
	v.SetDefault("engine.scenario", "general")
	v.SetDefault("engine.ice_servers", []string{})

	v.SetDefault("session.room_id", "room1")
	v.SetDefault("session.user_id", "")
	v.SetDefault("session.username", "")
	v.SetDefault("session.stream_id", "stream1")
	v.SetDefault("session.play_stream_id", "")
	v.SetDefault("session.view_mode", "aspect_fit")
	v.SetDefault("session.background_color", 0)
	v.SetDefault("session.surface_timeout", "5s")
	v.SetDefault("session.max_members", 0)
	v.SetDefault("session.auto_mount", true)
	v.SetDefault("session.grant_camera", true)
	v.SetDefault("session.grant_microphone", true)
	v.SetDefault("session.front_camera", true)

	v.SetDefault("capture.fps", 15)
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty.
// A missing file falls back to defaults. LIVEROOM_* variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("platform", cfg.Platform).Msg("config ready")
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Profile() domain.Profile {
	return domain.Profile{
		AppID:    c.Engine.AppID,
		AppSign:  c.Engine.AppSign,
		Scenario: scenarios[c.Engine.Scenario],
	}
}

var scenarios = map[string]domain.Scenario{
	"general":             domain.ScenarioGeneral,
	"communication":       domain.ScenarioCommunication,
	"live":                domain.ScenarioLive,
	"standard_video_call": domain.ScenarioStandardVideoCall,
}

var viewModes = map[string]domain.ViewMode{
	"aspect_fit":    domain.ViewModeAspectFit,
	"aspect_fill":   domain.ViewModeAspectFill,
	"scale_to_fill": domain.ViewModeScaleToFill,
}

func (s SessionConfig) Mode() domain.ViewMode { return viewModes[s.ViewMode] }

func (s SessionConfig) Facing() domain.CameraFacing {
	if s.FrontCamera {
		return domain.CameraFront
	}
	return domain.CameraBack
}

// Permissions is the grant used on platforms without a runtime prompt.
func (s SessionConfig) Permissions() domain.PermissionState {
	return domain.PermissionState{Camera: s.GrantCamera, Microphone: s.GrantMicrophone}
}

func (s SessionConfig) RoomConfig() domain.RoomConfig {
	return domain.RoomConfig{UserStatusNotify: true, MaxMemberCount: s.MaxMembers}
}
