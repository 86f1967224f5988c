// Package config loads persistent user configuration for the engine.
//
// Configuration is read by the front-end and passed into the CORE at
// startup. Sources, in priority order: command-line flags, environment
// variables (MINDER_ prefix, plus ACOUSTID_API_KEY), and the config file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Visualization modes accepted by audio.visualization_mode.
const (
	VizSpectrum = "spectrum"
	VizWaveform = "waveform"
	VizVuMeter  = "vu_meter"
	VizOff      = "off"
)

// Config holds all user-facing settings consumed by the CORE.
type Config struct {
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Audio       AudioConfig       `mapstructure:"audio"`
	Library     LibraryConfig     `mapstructure:"library"`
	Appearance  AppearanceConfig  `mapstructure:"appearance"`
}

// CredentialsConfig holds API credentials.
type CredentialsConfig struct {
	AcoustIDAPIKey string `mapstructure:"acoustid_api_key"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	OutputDevice      string `mapstructure:"output_device"`
	VisualizationMode string `mapstructure:"visualization_mode"`
}

// LibraryConfig holds library behavior settings.
type LibraryConfig struct {
	AutoQueue bool `mapstructure:"auto_queue"`
}

// AppearanceConfig holds UI settings the CORE persists on behalf of the host.
type AppearanceConfig struct {
	SidebarCollapsed bool `mapstructure:"sidebar_collapsed"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("audio.visualization_mode", VizSpectrum)
	v.SetDefault("library.auto_queue", true)
	v.SetDefault("appearance.sidebar_collapsed", false)
}

// Load reads configuration from the standard locations and the environment.
// A missing config file is not an error; defaults apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "music-minder"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; only real parse errors propagate.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// ACOUSTID_API_KEY is recognized without the MINDER_ prefix.
	if cfg.Credentials.AcoustIDAPIKey == "" {
		cfg.Credentials.AcoustIDAPIKey = os.Getenv("ACOUSTID_API_KEY")
	}

	if !validVizMode(cfg.Audio.VisualizationMode) {
		cfg.Audio.VisualizationMode = VizSpectrum
	}

	return &cfg, nil
}

func validVizMode(mode string) bool {
	switch mode {
	case VizSpectrum, VizWaveform, VizVuMeter, VizOff:
		return true
	}
	return false
}

// DataDir returns the application data directory (undo journal lives here).
func DataDir() string {
	return filepath.Join(xdg.DataHome, "music-minder")
}

// CacheDir returns the application cache directory (cover cache lives here).
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "music-minder")
}
