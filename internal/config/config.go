package config

import (
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/planovo/planovo-api/internal/textgen"
)

type AutomationConfig struct {
	QueueSize     int `mapstructure:"queue_size"`
	Workers       int `mapstructure:"workers"`
	MaxChainDepth int `mapstructure:"max_chain_depth"`
}

type SweepConfig struct {
	Cron            string        `mapstructure:"cron"`
	EscalationAfter time.Duration `mapstructure:"escalation_after"`
}

type EmailConfig struct {
	From     string `mapstructure:"from"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Config struct {
	DatabaseURL string           `mapstructure:"database_url"`
	ServerPort  string           `mapstructure:"server_port"`
	JWTSecret   string           `mapstructure:"jwt_secret"`
	CORSOrigin  string           `mapstructure:"cors_origin"`
	Automation  AutomationConfig `mapstructure:"automation"`
	Sweep       SweepConfig      `mapstructure:"sweep"`
	TextGen     textgen.Config   `mapstructure:"textgen"`
	Email       EmailConfig      `mapstructure:"email"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Sweep.Cron == "" {
		config.Sweep.Cron = "0 * * * *"
	}
	if config.Sweep.EscalationAfter == 0 {
		config.Sweep.EscalationAfter = 72 * time.Hour
	}

	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}

	return &config
}
