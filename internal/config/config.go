package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	NotifierURL     string        `mapstructure:"NOTIFIER_URL"`
	NotifierToken   string        `mapstructure:"NOTIFIER_TOKEN"`
	SummaryURL      string        `mapstructure:"SUMMARY_URL"`
	GeocoderURL     string        `mapstructure:"GEOCODER_URL"`
	SupervisorPhone string        `mapstructure:"SUPERVISOR_PHONE"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`
	IdleAfter       time.Duration `mapstructure:"IDLE_AFTER"`
	IdleRadiusM     float64       `mapstructure:"IDLE_RADIUS_M"`
	EscalateAfter   time.Duration `mapstructure:"ESCALATE_AFTER"`
	LowBatteryPct   int           `mapstructure:"LOW_BATTERY_PCT"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("IDLE_AFTER", "10m")
	v.SetDefault("IDLE_RADIUS_M", 50)
	v.SetDefault("ESCALATE_AFTER", "5m")
	v.SetDefault("LOW_BATTERY_PCT", 20)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
