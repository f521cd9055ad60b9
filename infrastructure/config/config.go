// Package config loads the service configuration. Precedence is defaults,
// then the optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Cache configuration. Redis is the optional external tier; the
	// service runs memory-only when disabled or unreachable.
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Monitoring loop intervals
	CleanupInterval time.Duration
	SamplerInterval time.Duration

	// HTTP
	CORSAllowedOrigins []string

	// Logging
	LogLevel string
	Debug    bool
}

// fileConfig is the YAML overlay shape. Zero values leave the defaults in
// place.
type fileConfig struct {
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	JWT struct {
		Secret   string `yaml:"secret"`
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
	} `yaml:"jwt"`

	Redis struct {
		Enabled  *bool  `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       *int   `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		CleanupInterval string `yaml:"cleanup_interval"`
		SamplerInterval string `yaml:"sampler_interval"`
	} `yaml:"monitoring"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	LogLevel string `yaml:"log_level"`
	Debug    *bool  `yaml:"debug"`
}

// LoadConfig loads configuration from the optional YAML file named by
// CONFIG_FILE and the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		JWTIssuer:          "attendance-backend",
		JWTAudience:        "attendance-api",
		RedisAddr:          "localhost:6379",
		CleanupInterval:    time.Hour,
		SamplerInterval:    30 * time.Second,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		LogLevel:           "info",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays the YAML file onto the current values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.ServerAddress != "" {
		c.ServerAddress = fc.ServerAddress
	}
	if fc.Environment != "" {
		c.Environment = fc.Environment
	}
	if fc.JWT.Secret != "" {
		c.JWTSecret = fc.JWT.Secret
	}
	if fc.JWT.Issuer != "" {
		c.JWTIssuer = fc.JWT.Issuer
	}
	if fc.JWT.Audience != "" {
		c.JWTAudience = fc.JWT.Audience
	}
	if fc.Redis.Enabled != nil {
		c.RedisEnabled = *fc.Redis.Enabled
	}
	if fc.Redis.Addr != "" {
		c.RedisAddr = fc.Redis.Addr
	}
	if fc.Redis.Password != "" {
		c.RedisPassword = fc.Redis.Password
	}
	if fc.Redis.DB != nil {
		c.RedisDB = *fc.Redis.DB
	}
	if fc.Monitoring.CleanupInterval != "" {
		if d, err := time.ParseDuration(fc.Monitoring.CleanupInterval); err == nil && d > 0 {
			c.CleanupInterval = d
		}
	}
	if fc.Monitoring.SamplerInterval != "" {
		if d, err := time.ParseDuration(fc.Monitoring.SamplerInterval); err == nil && d > 0 {
			c.SamplerInterval = d
		}
	}
	if len(fc.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}
	return nil
}

// applyEnv overlays environment variables onto the current values.
func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTAudience = getEnv("JWT_AUDIENCE", c.JWTAudience)

	c.RedisEnabled = getEnvBool("REDIS_ENABLED", c.RedisEnabled)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	c.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", c.CleanupInterval)
	c.SamplerInterval = getEnvDuration("SAMPLER_INTERVAL", c.SamplerInterval)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		c.CORSAllowedOrigins = parts
	}

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Debug = getEnvBool("DEBUG", c.Debug)
}

// Validate checks if all required configuration is present.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when Redis is enabled")
	}
	return nil
}

// IsDevelopment checks if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
