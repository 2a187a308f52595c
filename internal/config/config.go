package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/awaistahir/smart-save/internal/engine"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration for the CLI and daemon
type Config struct {
	DBPath    string
	HTTPPort  int
	LogLevel  string
	LogPretty bool

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	Latitude  float64
	Longitude float64
	Region    string

	MonthlyBudget float64
	Tariff        engine.TariffPlan
	Level         engine.OptimizationLevel
	AutoLevel     bool
}

// Settings is the advisor configuration described by the config file. The
// database copy wins once one has been saved.
func (c *Config) Settings() advisor.Settings {
	return advisor.Settings{
		Tariff:        c.Tariff,
		Level:         c.Level,
		MonthlyBudget: c.MonthlyBudget,
		AutoLevel:     c.AutoLevel,
	}
}

// Dir is the per-user directory holding config.yaml and the database
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smartsave"
	}
	return filepath.Join(home, ".smartsave")
}

func setDefaults(v *viper.Viper) {
	def := engine.DefaultTariffPlan()

	v.SetDefault("db", filepath.Join(Dir(), "smartsave.db"))
	v.SetDefault("http.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	// MQTT ingestion is off while broker is empty
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "home/power")
	v.SetDefault("mqtt.client_id", "smartsaved")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("location.latitude", 51.5074)
	v.SetDefault("location.longitude", -0.1278)
	v.SetDefault("prices.region", "C")

	v.SetDefault("budget.monthly", engine.DefaultMonthlyBudget)
	v.SetDefault("tariff.name", def.Name)
	v.SetDefault("tariff.day_price", def.DayPrice)
	v.SetDefault("tariff.night_price", def.NightPrice)
	v.SetDefault("tariff.day_start", def.DayStartHour)
	v.SetDefault("tariff.day_end", def.DayEndHour)
	v.SetDefault("optimizer.level", "balanced")
	v.SetDefault("optimizer.auto_level", true)
}

// Load reads configuration from cfgFile, or from config.yaml in Dir() when
// cfgFile is empty. A missing default file is not an error. Environment
// variables prefixed SMARTSAVE_ override file values.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SMARTSAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	level, err := engine.ParseLevel(v.GetString("optimizer.level"))
	if err != nil {
		return nil, fmt.Errorf("optimizer.level: %w", err)
	}

	cfg := &Config{
		DBPath:       v.GetString("db"),
		HTTPPort:     v.GetInt("http.port"),
		LogLevel:     v.GetString("log.level"),
		LogPretty:    v.GetBool("log.pretty"),
		MQTTBroker:   v.GetString("mqtt.broker"),
		MQTTTopic:    v.GetString("mqtt.topic"),
		MQTTClientID: v.GetString("mqtt.client_id"),
		MQTTUsername: v.GetString("mqtt.username"),
		MQTTPassword: v.GetString("mqtt.password"),
		Latitude:     v.GetFloat64("location.latitude"),
		Longitude:    v.GetFloat64("location.longitude"),
		Region:       v.GetString("prices.region"),

		MonthlyBudget: v.GetFloat64("budget.monthly"),
		Tariff: engine.TariffPlan{
			Name:         v.GetString("tariff.name"),
			DayPrice:     v.GetFloat64("tariff.day_price"),
			NightPrice:   v.GetFloat64("tariff.night_price"),
			DayStartHour: v.GetInt("tariff.day_start"),
			DayEndHour:   v.GetInt("tariff.day_end"),
		},
		Level:     level,
		AutoLevel: v.GetBool("optimizer.auto_level"),
	}

	if cfg.Tariff.DayStartHour < 0 || cfg.Tariff.DayStartHour > 23 ||
		cfg.Tariff.DayEndHour < 0 || cfg.Tariff.DayEndHour > 23 {
		return nil, fmt.Errorf("%w: tariff hours must be within 0-23", engine.ErrInvalidInput)
	}

	return cfg, nil
}
