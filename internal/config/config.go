package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StorageConfig holds session folder and upload storage configuration
type StorageConfig struct {
	SessionsDir string `mapstructure:"sessions_dir"`
}

// PipelineConfig holds the calculation pipeline configuration
type PipelineConfig struct {
	TemplateWorkbook string `mapstructure:"template_workbook"`
	TemplatesDir     string `mapstructure:"templates_dir"`
	MainTemplate     string `mapstructure:"main_template"`
	FinalSumTemplate string `mapstructure:"final_sum_template"`
	SheetName        string `mapstructure:"sheet_name"`
	StartRow         int    `mapstructure:"start_row"`
	HeaderRow        int    `mapstructure:"header_row"`
	ReferenceColumn  string `mapstructure:"reference_column"`
	// Constants maps output columns to fixed values filled into every
	// data row, e.g. lane counts that no input workbook carries.
	Constants map[string]float64 `mapstructure:"constants"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	QueueSize  int           `mapstructure:"queue_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)
	viper.SetDefault("server.max_upload_mb", 32)

	// Database defaults
	viper.SetDefault("database.path", "data/boq.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Storage defaults
	viper.SetDefault("storage.sessions_dir", "sessions")

	// Pipeline defaults
	viper.SetDefault("pipeline.template_workbook", "templates/main_carriageway.xlsx")
	viper.SetDefault("pipeline.templates_dir", "configs/templates")
	viper.SetDefault("pipeline.main_template", "quantity_main")
	viper.SetDefault("pipeline.final_sum_template", "final_sum")
	viper.SetDefault("pipeline.sheet_name", "Quantity")
	viper.SetDefault("pipeline.start_row", 7)
	viper.SetDefault("pipeline.header_row", 6)
	viper.SetDefault("pipeline.reference_column", "C")

	// Worker defaults
	viper.SetDefault("worker.queue_size", 16)
	viper.SetDefault("worker.job_timeout", 5*time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("server.port", "BOQ_SERVER_PORT")
	viper.BindEnv("database.path", "BOQ_DATABASE_PATH")
	viper.BindEnv("storage.sessions_dir", "BOQ_SESSIONS_DIR")
	viper.BindEnv("pipeline.template_workbook", "BOQ_TEMPLATE_WORKBOOK")
	viper.BindEnv("logger.level", "BOQ_LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.SessionsDir == "" {
		return fmt.Errorf("storage.sessions_dir is required")
	}
	if c.Pipeline.TemplateWorkbook == "" {
		return fmt.Errorf("pipeline.template_workbook is required")
	}
	if c.Pipeline.TemplatesDir == "" {
		return fmt.Errorf("pipeline.templates_dir is required")
	}
	if c.Pipeline.MainTemplate == "" {
		return fmt.Errorf("pipeline.main_template is required")
	}
	if c.Pipeline.FinalSumTemplate == "" {
		return fmt.Errorf("pipeline.final_sum_template is required")
	}
	if c.Pipeline.StartRow < 2 {
		return fmt.Errorf("pipeline.start_row must be at least 2")
	}
	if c.Pipeline.ReferenceColumn == "" {
		return fmt.Errorf("pipeline.reference_column is required")
	}
	return nil
}
