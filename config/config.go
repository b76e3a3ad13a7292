// Package config handles loading and accessing application configuration
// using Viper, supporting environment variables and config files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all process-wide configuration for the callwave orchestrator.
// Tags are used by Viper to map config file keys and environment variables.
type Config struct {
	Pool struct {
		MaxConnections int `mapstructure:"max_connections"`
		QueueTimeoutMs int `mapstructure:"queue_timeout_ms"`
		MaxQueueSize   int `mapstructure:"max_queue_size"`
	} `mapstructure:"pool"`

	Outbound struct {
		MaxConcurrent int `mapstructure:"max_concurrent"`
		RatePerSec    int `mapstructure:"rate_per_sec"`
		MinSpacingMs  int `mapstructure:"min_spacing_ms"`
		Breaker       struct {
			Threshold int `mapstructure:"threshold"`
			OpenMs    int `mapstructure:"open_ms"`
		} `mapstructure:"breaker"`
	} `mapstructure:"outbound"`

	Session struct {
		SilenceThresholdMs       int `mapstructure:"silence_threshold_ms"`
		BatchSilenceThresholdMs  int `mapstructure:"batch_silence_threshold_ms"`
		LLMFirstTokenTimeoutMs   int `mapstructure:"llm_first_token_timeout_ms"`
		LLMMidStreamTimeoutMs    int `mapstructure:"llm_mid_stream_timeout_ms"`
		GraceWindowMs            int `mapstructure:"grace_window_ms"`
		HoldingAudioThresholdMs  int `mapstructure:"holding_audio_threshold_ms"`
	} `mapstructure:"session"`

	Retrieval struct {
		TopK         int     `mapstructure:"top_k"`
		MinScore     float64 `mapstructure:"min_score"`
		EmbeddingDim int     `mapstructure:"embedding_dim"`
	} `mapstructure:"retrieval"`

	Scheduler struct {
		DefaultTimezone string `mapstructure:"default_timezone"`
		TaskQueue       string `mapstructure:"task_queue"`
		BusinessHours   struct {
			Start string `mapstructure:"start"`
			End   string `mapstructure:"end"`
			Days  []int  `mapstructure:"days"`
		} `mapstructure:"business_hours_default"`
	} `mapstructure:"scheduler"`

	Queue struct {
		RetryAttempts   int `mapstructure:"retry_attempts"`
		RetryBackoffMs  int `mapstructure:"retry_backoff_ms"`
	} `mapstructure:"queue"`

	FeatureFlag struct {
		OutboundPercentage int `mapstructure:"outbound_percentage"`
	} `mapstructure:"feature_flag"`

	Telephony struct {
		Provider        string `mapstructure:"provider"`
		AccountSID      string `mapstructure:"account_sid" env:"TELEPHONY_ACCOUNT_SID"`
		AuthToken       string `mapstructure:"auth_token" env:"TELEPHONY_AUTH_TOKEN"`
		WebhookSecret   string `mapstructure:"webhook_secret" env:"TELEPHONY_WEBHOOK_SECRET"`
		CredentialKeyHex string `mapstructure:"credential_key_hex" env:"TELEPHONY_CREDENTIAL_KEY_HEX"`
		BaseURL         string `mapstructure:"base_url"`
		PublicURL       string `mapstructure:"public_url"`
		FromNumber      string `mapstructure:"from_number" env:"TELEPHONY_FROM_NUMBER"`
	} `mapstructure:"telephony"`

	LLMs struct {
		Provider  string `mapstructure:"provider"`
		OpenAI    struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
			Model   string `mapstructure:"model"`
		} `mapstructure:"openai"`
		Anthropic struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
			Version string `mapstructure:"version"`
			Model   string `mapstructure:"model"`
		} `mapstructure:"anthropic"`
		Ollama struct {
			BaseURL string `mapstructure:"base_url"`
			Model   string `mapstructure:"model"`
		} `mapstructure:"ollama"`
		Bedrock struct {
			Region    string `mapstructure:"region"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
			ModelID   string `mapstructure:"model_id"`
		} `mapstructure:"bedrock"`
	} `mapstructure:"llms"`

	STT struct {
		Provider string `mapstructure:"provider"`
		Deepgram struct {
			APIKey string `mapstructure:"api_key"`
			Model  string `mapstructure:"model"`
		} `mapstructure:"deepgram"`
	} `mapstructure:"stt"`

	TTS struct {
		Provider   string `mapstructure:"provider"`
		ElevenLabs struct {
			APIKey  string `mapstructure:"api_key"`
			VoiceID string `mapstructure:"voice_id"`
			Model   string `mapstructure:"model"`
		} `mapstructure:"elevenlabs"`
	} `mapstructure:"tts"`

	Embeddings struct {
		Provider string `mapstructure:"provider"`
		OpenAI   struct {
			APIKey string `mapstructure:"api_key"`
			Model  string `mapstructure:"model"`
		} `mapstructure:"openai"`
	} `mapstructure:"embeddings"`

	Server struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		APIBasePath     string        `mapstructure:"api_base_path"`
		EnableCORS      bool          `mapstructure:"enable_cors"`
	} `mapstructure:"server"`

	Temporal struct {
		HostPort  string `mapstructure:"host_port"`
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"temporal"`

	Database struct {
		DSN          string `mapstructure:"dsn" env:"DATABASE_DSN"`
		VectorStore  string `mapstructure:"vector_store"`
	} `mapstructure:"database"`

	LogLevel string `mapstructure:"log_level"`
}

// Cfg is the process-wide configuration instance, populated by LoadConfig.
var Cfg Config

// LoadConfig reads configuration from file and environment variables,
// applying the defaults in spec.md §6 "Configuration" for any value not
// supplied by a config file or environment.
func LoadConfig(configPaths ...string) error {
	v := viper.New()

	v.SetDefault("pool.max_connections", 20)
	v.SetDefault("pool.queue_timeout_ms", 30000)
	v.SetDefault("pool.max_queue_size", 50)

	v.SetDefault("outbound.max_concurrent", 10)
	v.SetDefault("outbound.rate_per_sec", 20)
	v.SetDefault("outbound.min_spacing_ms", 50)
	v.SetDefault("outbound.breaker.threshold", 5)
	v.SetDefault("outbound.breaker.open_ms", 60000)

	v.SetDefault("session.silence_threshold_ms", 150)
	v.SetDefault("session.batch_silence_threshold_ms", 1500)
	v.SetDefault("session.llm_first_token_timeout_ms", 4000)
	v.SetDefault("session.llm_mid_stream_timeout_ms", 2000)
	v.SetDefault("session.grace_window_ms", 30000)
	v.SetDefault("session.holding_audio_threshold_ms", 2000)

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.min_score", 0.70)
	v.SetDefault("retrieval.embedding_dim", 1536)

	v.SetDefault("scheduler.default_timezone", "Asia/Kolkata")
	v.SetDefault("scheduler.task_queue", "callwave-scheduler")
	v.SetDefault("scheduler.business_hours_default.start", "09:00")
	v.SetDefault("scheduler.business_hours_default.end", "18:00")
	v.SetDefault("scheduler.business_hours_default.days", []int{1, 2, 3, 4, 5})

	v.SetDefault("queue.retry_attempts", 3)
	v.SetDefault("queue.retry_backoff_ms", 2000)

	v.SetDefault("feature_flag.outbound_percentage", 100)

	v.SetDefault("telephony.provider", "twilio")
	v.SetDefault("telephony.base_url", "https://api.twilio.com")
	v.SetDefault("telephony.from_number", "")

	v.SetDefault("llms.provider", "anthropic")
	v.SetDefault("llms.openai.model", "gpt-4o")
	v.SetDefault("llms.anthropic.model", "claude-3-5-haiku-20241022")
	v.SetDefault("llms.anthropic.version", "2023-06-01")
	v.SetDefault("llms.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llms.ollama.model", "llama3")
	v.SetDefault("llms.bedrock.region", "us-east-1")

	v.SetDefault("stt.provider", "deepgram")
	v.SetDefault("stt.deepgram.model", "nova-2-phonecall")

	v.SetDefault("tts.provider", "elevenlabs")
	v.SetDefault("tts.elevenlabs.model", "eleven_turbo_v2_5")

	v.SetDefault("embeddings.provider", "openai")
	v.SetDefault("embeddings.openai.model", "text-embedding-3-small")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.api_base_path", "/api/v1")
	v.SetDefault("server.enable_cors", true)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")

	v.SetDefault("database.vector_store", "inmemory")

	v.SetDefault("log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/callwave/")
	v.AddConfigPath("$HOME/.callwave")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("config file not found, using defaults and environment variables")
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CALLWAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&Cfg); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return nil
}
