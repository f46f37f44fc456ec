package genairadio

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no OpenAI key is configured
var ErrMissingAPIKey = errors.New("missing OpenAI API key (set OPENAI_API_KEY)")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	DBPath        string         `mapstructure:"db_path"`
	AudioDir      string         `mapstructure:"audio_dir"`
	LogDir        string         `mapstructure:"log_dir"`
	Verbose       bool           `mapstructure:"verbose"`
	Port          string         `mapstructure:"port"`
	SessionSecret string         `mapstructure:"session_secret"`
	OpenAIKey     string         `mapstructure:"-"`
	Quiz          QuizConfig     `mapstructure:"quiz"`
	OpenAI        OpenAIConfig   `mapstructure:"openai"`
	Upstream      UpstreamConfig `mapstructure:"upstream"`
	Session       SessionConfig  `mapstructure:"session"`
	Redis         RedisConfig    `mapstructure:"redis"`
}

// QuizConfig controls question generation
type QuizConfig struct {
	Length int `mapstructure:"length"`
}

// OpenAIConfig selects the models used for narration and speech
type OpenAIConfig struct {
	NarrationModel string `mapstructure:"narration_model"`
	SpeechModel    string `mapstructure:"speech_model"`
	Voice          string `mapstructure:"voice"`
}

// UpstreamConfig bounds calls to the narration and speech services
type UpstreamConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxTries        int           `mapstructure:"max_tries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
}

// RetryPolicy converts the upstream section into a RetryPolicy
func (u UpstreamConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{Timeout: u.Timeout, MaxTries: u.MaxTries, InitialInterval: u.InitialInterval}
}

// SessionConfig selects where quiz attempts are kept
type SessionConfig struct {
	Backend  string        `mapstructure:"backend"` // memory or redis
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisConfig locates the redis server for the redis session backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoadConfig reads ./config/config.yaml if present, then applies
// GENAI_RADIO_* environment overrides. requireKey makes a missing
// OPENAI_API_KEY an error.
func LoadConfig(requireKey bool) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("db_path", "./genai_radio.db")
	v.SetDefault("audio_dir", "./audio")
	v.SetDefault("log_dir", "./log")
	v.SetDefault("verbose", false)
	v.SetDefault("port", "8180")
	v.SetDefault("session_secret", "")
	v.SetDefault("quiz.length", DefaultQuizLength)
	v.SetDefault("openai.narration_model", "gpt-4o-mini")
	v.SetDefault("openai.speech_model", "tts-1")
	v.SetDefault("openai.voice", "alloy")
	v.SetDefault("upstream.timeout", DefaultRetryPolicy.Timeout)
	v.SetDefault("upstream.max_tries", DefaultRetryPolicy.MaxTries)
	v.SetDefault("upstream.initial_interval", DefaultRetryPolicy.InitialInterval)
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.capacity", 10000)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetEnvPrefix("GENAI_RADIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("port", "PORT", "GENAI_RADIO_PORT")
	_ = v.BindEnv("session_secret", "SESSION_SECRET", "GENAI_RADIO_SESSION_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.OpenAIKey = v.GetString("openai_api_key")
	if requireKey && cfg.OpenAIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Session.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	return &cfg, nil
}
