package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// PublicURL is the externally reachable base URL of this server;
	// the answer webhook derives the media-stream WS URL from it.
	PublicURL string `mapstructure:"public_url"`

	TelephonyRate int `mapstructure:"telephony_rate"`
	RoomRate      int `mapstructure:"room_rate"`

	Plivo   PlivoConfig   `mapstructure:"plivo"`
	LiveKit LiveKitConfig `mapstructure:"livekit"`
}

type PlivoConfig struct {
	AuthID    string `mapstructure:"auth_id"`
	AuthToken string `mapstructure:"auth_token"`
	Number    string `mapstructure:"number"`
}

type LiveKitConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

func Load() (*Config, error) {
	// .env first so viper's env bindings see it.
	if envfile := os.Getenv("ENV_FILE"); envfile != "" {
		_ = godotenv.Load(envfile)
	} else {
		_ = godotenv.Load()
	}

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
	v.SetDefault("port", 8000)
	v.SetDefault("public_url", "http://localhost:8000")
	v.SetDefault("telephony_rate", 16000)
	v.SetDefault("room_rate", 48000)

	v.SetEnvPrefix("bridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// credentials come from the environment in every deployment
	_ = v.BindEnv("plivo.auth_id", "PLIVO_AUTH_ID")
	_ = v.BindEnv("plivo.auth_token", "PLIVO_AUTH_TOKEN")
	_ = v.BindEnv("plivo.number", "PLIVO_PHONE_NUMBER")
	_ = v.BindEnv("livekit.url", "LIVEKIT_URL")
	_ = v.BindEnv("livekit.api_key", "LIVEKIT_API_KEY")
	_ = v.BindEnv("livekit.api_secret", "LIVEKIT_API_SECRET")
	_ = v.BindEnv("public_url", "BRIDGE_SERVER_URL")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults and env\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate reports missing credentials at startup rather than at the
// first call.
func (c *Config) Validate() error {
	if c.LiveKit.URL == "" || c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
		return fmt.Errorf("missing LiveKit configuration: set LIVEKIT_URL, LIVEKIT_API_KEY, LIVEKIT_API_SECRET")
	}
	if c.Plivo.AuthID == "" || c.Plivo.AuthToken == "" || c.Plivo.Number == "" {
		return fmt.Errorf("missing Plivo configuration: set PLIVO_AUTH_ID, PLIVO_AUTH_TOKEN, PLIVO_PHONE_NUMBER")
	}
	return nil
}

// StreamWSURL is the media-stream socket URL handed to the telephony
// platform in the answer document.
func (c *Config) StreamWSURL() string {
	base := c.PublicURL
	if base == "" {
		return ""
	}
	scheme := "ws"
	switch {
	case strings.HasPrefix(base, "https://"):
		scheme = "wss"
		base = strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s://%s/plivo/media-stream", scheme, strings.TrimSuffix(base, "/"))
}
