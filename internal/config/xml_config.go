// Package config provides XML-based configuration for the TPMS dashboard server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"TPMSDashboard"`

	Server     ServerConfig     `xml:"Server"`
	Simulation SimulationConfig `xml:"Simulation"`
	Storage    StorageConfig    `xml:"Storage"`
	Processing ProcessingConfig `xml:"Processing"`
	Redis      RedisConfig      `xml:"Redis"`
	Device     DeviceConfig     `xml:"Device"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
	EnableGzip   bool   `xml:"EnableGzip"`
}

// SimulationConfig controls mock data generation and layout
type SimulationConfig struct {
	IntervalMilliseconds int    `xml:"IntervalMilliseconds"`
	HistoryPoints        int    `xml:"HistoryPoints"`
	Mode                 string `xml:"Mode"` // drift or uniform
	Seed                 uint64 `xml:"Seed"` // 0 = random
	LayoutProfile        string `xml:"LayoutProfile"`
	ThresholdsFile       string `xml:"ThresholdsFile"` // optional YAML table
	LabelLayout          string `xml:"LabelLayout"`
	MinTires             int    `xml:"MinTires"`
	MaxTires             int    `xml:"MaxTires"`
	DefaultTireCount     int    `xml:"DefaultTireCount"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory       string `xml:"DataDirectory"`
	ProfilesDirectory   string `xml:"ProfilesDirectory"` // relative to DataDirectory
	ArchivePath         string `xml:"ArchivePath"`       // relative to DataDirectory
	EnableArchive       bool   `xml:"EnableArchive"`
	ArchiveBatchSize    int    `xml:"ArchiveBatchSize"`
	ArchiveFlushSeconds int    `xml:"ArchiveFlushSeconds"`
}

// ProcessingConfig contains session lifecycle settings
type ProcessingConfig struct {
	MaxSessions            int `xml:"MaxSessions"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
}

// RedisConfig contains the optional live mirror settings
type RedisConfig struct {
	Enabled       bool   `xml:"Enabled"`
	Host          string `xml:"Host"`
	Port          int    `xml:"Port"`
	Password      string `xml:"Password"`
	DB            int    `xml:"DB"`
	Prefix        string `xml:"Prefix"`
	HistoryLength int    `xml:"HistoryLength"`
	TTLSeconds    int    `xml:"TTLSeconds"`
}

// DeviceConfig holds the default CAN receiver settings
type DeviceConfig struct {
	RxID     string `xml:"RxID"`
	TxID     string `xml:"TxID"`
	BaudRate int    `xml:"BaudRate"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	PrettyLogs              bool   `xml:"PrettyLogs"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	EnableMetrics           bool   `xml:"EnableMetrics"`
	DuckDBThreads           int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit       string `xml:"DuckDBMemoryLimit"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
	EChartsAssetsHost       string `xml:"EChartsAssetsHost"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "1M",
			EnableGzip:   true,
		},
		Simulation: SimulationConfig{
			IntervalMilliseconds: 2000,
			HistoryPoints:        50,
			Mode:                 "drift",
			LayoutProfile:        "truck",
			LabelLayout:          "3:04:05 PM",
			MinTires:             2,
			MaxTires:             16,
			DefaultTireCount:     6,
		},
		Storage: StorageConfig{
			DataDirectory:       "./data",
			ProfilesDirectory:   "profiles",
			ArchivePath:         "archive.duckdb",
			EnableArchive:       false,
			ArchiveBatchSize:    500,
			ArchiveFlushSeconds: 10,
		},
		Processing: ProcessingConfig{
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Redis: RedisConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          6379,
			Prefix:        "tpms",
			HistoryLength: 1000,
		},
		Device: DeviceConfig{
			RxID:     "0x123",
			TxID:     "0x456",
			BaudRate: 500000,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			PrettyLogs:              true,
			EnableRequestLogging:    true,
			EnableMetrics:           true,
			DuckDBThreads:           2,
			DuckDBMemoryLimit:       "256MB",
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from XML file, writing defaults on first run
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- TPMS Dashboard Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the server cannot run with
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Simulation.MinTires < 2 || c.Simulation.MaxTires < c.Simulation.MinTires {
		return fmt.Errorf("invalid tire limits %d-%d", c.Simulation.MinTires, c.Simulation.MaxTires)
	}
	if c.Simulation.IntervalMilliseconds <= 0 {
		return fmt.Errorf("invalid simulation interval %dms", c.Simulation.IntervalMilliseconds)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.ProfilesDirectory) {
		c.Storage.ProfilesDirectory = filepath.Join(c.Storage.DataDirectory, c.Storage.ProfilesDirectory)
	}
	if !filepath.IsAbs(c.Storage.ArchivePath) {
		c.Storage.ArchivePath = filepath.Join(c.Storage.DataDirectory, c.Storage.ArchivePath)
	}
	if c.Simulation.ThresholdsFile != "" && !filepath.IsAbs(c.Simulation.ThresholdsFile) {
		c.Simulation.ThresholdsFile = filepath.Join(configDir, c.Simulation.ThresholdsFile)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetRedisAddr returns host:port of the Redis mirror
func (c *AppConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// SimulationInterval returns the tick period
func (c *AppConfig) SimulationInterval() time.Duration {
	return time.Duration(c.Simulation.IntervalMilliseconds) * time.Millisecond
}

// SessionTimeout returns how long idle sessions are kept
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the idle-session sweep period
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.ProfilesDirectory,
	}
	if c.Storage.EnableArchive {
		dirs = append(dirs, filepath.Dir(c.Storage.ArchivePath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
