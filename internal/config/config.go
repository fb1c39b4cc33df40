package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "limsim.cfg.json"

// SimConfig holds the simulation parameters.
type SimConfig struct {
	Frequency          int     `json:"frequency" mapstructure:"frequency"`
	RunTime            int64   `json:"runTime" mapstructure:"runTime"`
	GenerationFraction float64 `json:"generationFraction" mapstructure:"generationFraction"`
	Seed               int64   `json:"seed" mapstructure:"seed"`
	SpeedMin           float64 `json:"speedMin" mapstructure:"speedMin"`
	SpeedMax           float64 `json:"speedMax" mapstructure:"speedMax"`
	VehicleLength      float64 `json:"vehicleLength" mapstructure:"vehicleLength"`
	VehicleWidth       float64 `json:"vehicleWidth" mapstructure:"vehicleWidth"`
	DesiredSpeed       float64 `json:"desiredSpeed" mapstructure:"desiredSpeed"`
	RenderQueue        int     `json:"renderQueue" mapstructure:"renderQueue"`
	FocusRadius        float64 `json:"focusRadius" mapstructure:"focusRadius"`
	SceneRadius        float64 `json:"sceneRadius" mapstructure:"sceneRadius"`
	ProgressEvery      int64   `json:"progressEvery" mapstructure:"progressEvery"`
}

// MemoryConfig holds in-memory storage backend settings
type MemoryConfig struct {
	ExportDir      string `json:"exportDir" mapstructure:"exportDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres storage backend settings. A zero
// FlushInterval commits every tick before the driver moves on.
type PostgresConfig struct {
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// RedisConfig holds Redis storage backend settings
type RedisConfig struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
	Prefix   string `json:"prefix" mapstructure:"prefix"`
}

// StorageConfig selects and configures the trace store.
type StorageConfig struct {
	Type        string         `json:"type" mapstructure:"type"`
	Compression string         `json:"compression" mapstructure:"compression"`
	OutputDir   string         `json:"outputDir" mapstructure:"outputDir"`
	Memory      MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite      SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres    PostgresConfig `json:"postgres" mapstructure:"postgres"`
	Redis       RedisConfig    `json:"redis" mapstructure:"redis"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// ServerConfig holds the control API settings.
type ServerConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
}

// InfluxConfig holds the per-tick metrics sink settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// SetDefaults registers default values for every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sim.frequency", 4)
	viper.SetDefault("sim.runTime", 600)
	viper.SetDefault("sim.generationFraction", 0.3)
	viper.SetDefault("sim.seed", 0)
	viper.SetDefault("sim.speedMin", 0.0)
	viper.SetDefault("sim.speedMax", 0.0)
	viper.SetDefault("sim.vehicleLength", 5.0)
	viper.SetDefault("sim.vehicleWidth", 2.0)
	viper.SetDefault("sim.desiredSpeed", 10.0)
	viper.SetDefault("sim.renderQueue", 10)
	viper.SetDefault("sim.focusRadius", 10.0)
	viper.SetDefault("sim.sceneRadius", 50.0)
	viper.SetDefault("sim.progressEvery", 10)

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.compression", "zstd")
	viper.SetDefault("storage.outputDir", "./traces")
	viper.SetDefault("storage.memory.exportDir", "")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "0s")
	viper.SetDefault("storage.postgres.flushInterval", "0s")
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.password", "")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.prefix", "limsim")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "limsim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "limsim")
	viper.SetDefault("influx.bucket", "simulation")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "limsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("server.enabled", false)
	viper.SetDefault("server.listen", ":8080")

	viper.SetDefault("api.serverUrl", "http://localhost:8080")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetSimConfig returns the simulation parameters.
func GetSimConfig() SimConfig {
	return SimConfig{
		Frequency:          viper.GetInt("sim.frequency"),
		RunTime:            viper.GetInt64("sim.runTime"),
		GenerationFraction: viper.GetFloat64("sim.generationFraction"),
		Seed:               viper.GetInt64("sim.seed"),
		SpeedMin:           viper.GetFloat64("sim.speedMin"),
		SpeedMax:           viper.GetFloat64("sim.speedMax"),
		VehicleLength:      viper.GetFloat64("sim.vehicleLength"),
		VehicleWidth:       viper.GetFloat64("sim.vehicleWidth"),
		DesiredSpeed:       viper.GetFloat64("sim.desiredSpeed"),
		RenderQueue:        viper.GetInt("sim.renderQueue"),
		FocusRadius:        viper.GetFloat64("sim.focusRadius"),
		SceneRadius:        viper.GetFloat64("sim.sceneRadius"),
		ProgressEvery:      viper.GetInt64("sim.progressEvery"),
	}
}

// GetStorageConfig returns the trace store configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:        viper.GetString("storage.type"),
		Compression: viper.GetString("storage.compression"),
		OutputDir:   viper.GetString("storage.outputDir"),
		Memory: MemoryConfig{
			ExportDir:      viper.GetString("storage.memory.exportDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			FlushInterval: viper.GetDuration("storage.postgres.flushInterval"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("storage.redis.addr"),
			Password: viper.GetString("storage.redis.password"),
			DB:       viper.GetInt("storage.redis.db"),
			Prefix:   viper.GetString("storage.redis.prefix"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetServerConfig returns the control API configuration.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Enabled: viper.GetBool("server.enabled"),
		Listen:  viper.GetString("server.listen"),
	}
}

// GetInfluxConfig returns the InfluxDB sink configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
