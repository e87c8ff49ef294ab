package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ICEServer mirrors one RTCIceServer descriptor from configuration.
type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode         string        `mapstructure:"mode"`
	HTTPPort     int           `mapstructure:"http_port"`
	WSBaseURL    string        `mapstructure:"ws_base_url"`
	ICEServers   []ICEServer   `mapstructure:"ice_servers"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	UserID       string        `mapstructure:"user_id"`
	ConsentToken string        `mapstructure:"consent_token"`
	AudioPlayer  string        `mapstructure:"audio_player"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("http_port", 8090)
	v.SetDefault("ws_base_url", "ws://localhost:8080")
	v.SetDefault("retry_delay", "2s")
	v.SetDefault("audio_player", "ffplay")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
