package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
	"github.com/unklstewy/radarfusion/pkg/logger"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the complete service configuration.
type Config struct {
	Logging  logger.Config  `toml:"logging"`
	Fusion   FusionConfig   `toml:"fusion"`
	Sources  SourcesConfig  `toml:"sources"`
	Area     AreaConfig     `toml:"area"`
	Airport  AirportConfig  `toml:"airport"`
	Sampler  SamplerConfig  `toml:"sampler"`
	Feeds    []FeedConfig   `toml:"feeds"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
}

// FusionConfig holds the fusion engine constants in plain units:
// seconds, meters and meters per second.
type FusionConfig struct {
	RealFixTimeoutSeconds               int     `toml:"real_fix_timeout_seconds"`
	MaxRealFixAgeSeconds                int     `toml:"max_real_fix_age_seconds"`
	VerticalSpeedTimeDiffSeconds        int     `toml:"vertical_speed_time_diff_seconds"`
	VerticalSpeedThreshold              float64 `toml:"vertical_speed_threshold"`
	MinTimeIntervalForPredictionSeconds int     `toml:"min_time_interval_for_prediction_seconds"`
	MinFixCountForLinearRegression      int     `toml:"min_fix_count_for_linear_regression"`
	MaxPredictedSeconds                 int     `toml:"max_predicted_seconds"`
	MaxCircleRadiusForFitting           float64 `toml:"max_circle_radius_for_fitting"`
	AltitudeThresholdForOnGround        float64 `toml:"altitude_threshold_for_on_ground"`
	MaxGroundSpeedForOnGround           float64 `toml:"max_ground_speed_for_on_ground"`
	SquawkAreaThreshold                 float64 `toml:"squawk_area_threshold"`
	RedundantFixWindowSeconds           int     `toml:"redundant_fix_window_seconds"`
}

// Durations converts to the engine's representation. Source priority and
// areas are left empty; see Config.TrackingConfig.
func (f FusionConfig) Durations() tracking.Config {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return tracking.Config{
		RealFixTimeout:                        sec(f.RealFixTimeoutSeconds),
		MaxRealFixAge:                         sec(f.MaxRealFixAgeSeconds),
		VerticalSpeedTimeDiff:                 sec(f.VerticalSpeedTimeDiffSeconds),
		VerticalSpeedThreshold:                f.VerticalSpeedThreshold,
		MinTimeIntervalForPrediction:          sec(f.MinTimeIntervalForPredictionSeconds),
		MinFixCountForLinearRegression:        f.MinFixCountForLinearRegression,
		MaxPredicted:                          sec(f.MaxPredictedSeconds),
		MaxCircleRadiusForFitting:             f.MaxCircleRadiusForFitting,
		AltitudeThresholdForOnGroundDetection: f.AltitudeThresholdForOnGround,
		MaxGroundSpeedForOnGroundDetection:    f.MaxGroundSpeedForOnGround,
		SquawkAreaThreshold:                   f.SquawkAreaThreshold,
		RedundantFixWindow:                    sec(f.RedundantFixWindowSeconds),
	}
}

// SourcesConfig ranks the feeds. The first entry has the highest priority.
type SourcesConfig struct {
	Priority []string `toml:"priority"`
}

// AreaConfig is a latitude/longitude bounding box. All zero means unset.
type AreaConfig struct {
	South float64 `toml:"south"`
	West  float64 `toml:"west"`
	North float64 `toml:"north"`
	East  float64 `toml:"east"`
}

// Area converts to the coordinates representation.
func (a AreaConfig) Area() coordinates.Area {
	return coordinates.Area{South: a.South, West: a.West, North: a.North, East: a.East}
}

// AirportConfig describes the field used for on-ground detection.
type AirportConfig struct {
	Name      string     `toml:"name"`
	Area      AreaConfig `toml:"area"`
	Elevation float64    `toml:"elevation"` // meters MSL
}

// SamplerConfig sets the prediction cadence.
type SamplerConfig struct {
	IntervalMillis   int `toml:"interval_millis"`
	TrailLength      int `toml:"trail_length"`
	TrailStepSeconds int `toml:"trail_step_seconds"`
}

// FeedConfig configures one polled feed.
type FeedConfig struct {
	Name    string `toml:"name"`
	Type    string `toml:"type"`   // airplanes.live
	Source  string `toml:"source"` // tag attached to every report, e.g. adsb
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`

	CenterLat float64 `toml:"center_lat"`
	CenterLon float64 `toml:"center_lon"`
	RadiusNM  float64 `toml:"radius_nm"`

	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
}

// PollInterval returns the poll interval, at least one second.
func (f FeedConfig) PollInterval() time.Duration {
	if f.PollIntervalSeconds < 1 {
		return time.Second
	}
	return time.Duration(f.PollIntervalSeconds) * time.Second
}

// KafkaConfig configures the report topic consumer.
type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`

	// Source is applied to messages that carry none.
	Source string `toml:"source"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`

	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig contains Postgres connection settings. The recorder is
// only started when Enabled is set.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`

	// RetentionHours bounds the recorded position history.
	RetentionHours int `toml:"retention_hours"`
}

// AuthConfig guards the source control endpoints. When disabled they are
// open to anyone who can reach the server.
type AuthConfig struct {
	Enabled    bool            `toml:"enabled"`
	Secret     string          `toml:"secret"`
	TokenHours int             `toml:"token_hours"`
	Accounts   []AccountConfig `toml:"accounts"`
}

// AccountConfig is one login. PasswordHash is bcrypt, see
// radarfusion -hash-password.
type AccountConfig struct {
	Name         string `toml:"name"`
	PasswordHash string `toml:"password_hash"`
	Role         string `toml:"role"` // operator (default) or viewer
}

// TokenDuration returns the token lifetime.
func (a AuthConfig) TokenDuration() time.Duration {
	return time.Duration(a.TokenHours) * time.Hour
}

// SourcePriority parses the configured priority list. Unknown names are
// skipped; Validate reports them.
func (c *Config) SourcePriority() []adsb.Source {
	out := make([]adsb.Source, 0, len(c.Sources.Priority))
	for _, s := range c.Sources.Priority {
		if src, err := adsb.ParseSource(s); err == nil {
			out = append(out, src)
		}
	}
	return out
}

// TrackingConfig returns the complete engine configuration.
func (c *Config) TrackingConfig() tracking.Config {
	tc := c.Fusion.Durations()
	tc.SourcePriority = c.SourcePriority()
	tc.MonitoredArea = c.Area.Area()
	return tc
}

// TrackingAirport returns the configured airport, or nil when no area is set.
func (c *Config) TrackingAirport() *tracking.Airport {
	area := c.Airport.Area.Area()
	if area.IsZero() {
		return nil
	}
	return &tracking.Airport{Area: area, Elevation: c.Airport.Elevation}
}

// SamplerConfig converts the sampler section.
func (c *Config) SamplerConfig() tracking.SamplerConfig {
	return tracking.SamplerConfig{
		Interval:    time.Duration(c.Sampler.IntervalMillis) * time.Millisecond,
		TrailLength: c.Sampler.TrailLength,
		TrailStep:   time.Duration(c.Sampler.TrailStepSeconds) * time.Second,
	}
}

// Load reads configuration from a TOML file.
// If the file doesn't exist, returns default configuration.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a TOML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.Config{Level: "info", Format: "console"},
		Fusion: FusionConfig{
			RealFixTimeoutSeconds:               60,
			MaxRealFixAgeSeconds:                120,
			VerticalSpeedTimeDiffSeconds:        10,
			VerticalSpeedThreshold:              0.3,
			MinTimeIntervalForPredictionSeconds: 60,
			MinFixCountForLinearRegression:      3,
			MaxPredictedSeconds:                 30,
			MaxCircleRadiusForFitting:           1000,
			AltitudeThresholdForOnGround:        50,
			MaxGroundSpeedForOnGround:           15,
			SquawkAreaThreshold:                 500,
			RedundantFixWindowSeconds:           10,
		},
		Sources: SourcesConfig{
			Priority: []string{string(adsb.SourceOGN), string(adsb.SourceADSB)},
		},
		Sampler: SamplerConfig{
			IntervalMillis:   1000,
			TrailLength:      12,
			TrailStepSeconds: 5,
		},
		Feeds: []FeedConfig{
			{
				Name:                "airplanes.live",
				Type:                "airplanes.live",
				Source:              string(adsb.SourceADSB),
				Enabled:             true,
				BaseURL:             "https://api.airplanes.live/v2",
				RadiusNM:            50,
				PollIntervalSeconds: 2,
				RequestsPerSecond:   1,
				TimeoutSeconds:      10,
			},
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "ogn-reports",
			GroupID: "radarfusion",
			Source:  string(adsb.SourceOGN),
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "radarfusion",
			Username:       "radarfusion",
			SSLMode:        "disable",
			MaxOpenConns:   10,
			MaxIdleConns:   2,
			RetentionHours: 24,
		},
		Auth: AuthConfig{
			TokenHours: 12,
		},
	}
}

// Validate checks value ranges. Errors wrap ErrInvalidConfig and name the
// offending key.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...))
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", "%v", err)
	}

	f := c.Fusion
	positive := []struct {
		key   string
		value int
	}{
		{"fusion.real_fix_timeout_seconds", f.RealFixTimeoutSeconds},
		{"fusion.max_real_fix_age_seconds", f.MaxRealFixAgeSeconds},
		{"fusion.vertical_speed_time_diff_seconds", f.VerticalSpeedTimeDiffSeconds},
		{"fusion.min_time_interval_for_prediction_seconds", f.MinTimeIntervalForPredictionSeconds},
		{"fusion.max_predicted_seconds", f.MaxPredictedSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return invalid(p.key, "must be positive, got %d", p.value)
		}
	}
	if f.MaxRealFixAgeSeconds < f.RealFixTimeoutSeconds {
		return invalid("fusion.max_real_fix_age_seconds", "must not be shorter than real_fix_timeout_seconds")
	}
	if f.MinFixCountForLinearRegression < 2 {
		return invalid("fusion.min_fix_count_for_linear_regression", "must be at least 2, got %d", f.MinFixCountForLinearRegression)
	}
	if f.RedundantFixWindowSeconds < 0 {
		return invalid("fusion.redundant_fix_window_seconds", "must not be negative")
	}
	if f.VerticalSpeedThreshold < 0 || f.SquawkAreaThreshold < 0 || f.MaxCircleRadiusForFitting < 0 {
		return invalid("fusion", "thresholds must not be negative")
	}

	if len(c.Sources.Priority) == 0 {
		return invalid("sources.priority", "at least one source is required")
	}
	seen := make(map[adsb.Source]bool)
	for _, name := range c.Sources.Priority {
		src, err := adsb.ParseSource(name)
		if err != nil {
			return invalid("sources.priority", "%v", err)
		}
		if seen[src] {
			return invalid("sources.priority", "duplicate source %q", src)
		}
		seen[src] = true
	}

	if err := validateArea("area", c.Area); err != nil {
		return err
	}
	if err := validateArea("airport.area", c.Airport.Area); err != nil {
		return err
	}

	if c.Sampler.IntervalMillis <= 0 {
		return invalid("sampler.interval_millis", "must be positive")
	}
	if c.Sampler.TrailLength < 0 || c.Sampler.TrailStepSeconds < 0 {
		return invalid("sampler", "trail settings must not be negative")
	}

	for i, feed := range c.Feeds {
		key := fmt.Sprintf("feeds[%d]", i)
		if feed.Type != "airplanes.live" {
			return invalid(key+".type", "unsupported feed type %q", feed.Type)
		}
		if _, err := adsb.ParseSource(feed.Source); err != nil {
			return invalid(key+".source", "%v", err)
		}
		if feed.Enabled && feed.BaseURL == "" {
			return invalid(key+".base_url", "required")
		}
		if feed.RadiusNM <= 0 {
			return invalid(key+".radius_nm", "must be positive")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return invalid("kafka.brokers", "at least one broker is required")
		}
		if c.Kafka.Topic == "" {
			return invalid("kafka.topic", "required")
		}
		if _, err := adsb.ParseSource(c.Kafka.Source); err != nil {
			return invalid("kafka.source", "%v", err)
		}
	}

	if c.Server.Port == "" {
		return invalid("server.port", "required")
	}
	if c.Database.Enabled && c.Database.Host == "" {
		return invalid("database.host", "required")
	}

	if c.Auth.Enabled {
		if c.Auth.Secret == "" {
			return invalid("auth.secret", "required when auth is enabled")
		}
		if len(c.Auth.Accounts) == 0 {
			return invalid("auth.accounts", "at least one account is required")
		}
		for i, a := range c.Auth.Accounts {
			if a.Name == "" || a.PasswordHash == "" {
				return invalid(fmt.Sprintf("auth.accounts[%d]", i), "name and password_hash are required")
			}
		}
	}
	return nil
}

func validateArea(key string, a AreaConfig) error {
	if a == (AreaConfig{}) {
		return nil
	}
	if a.South >= a.North {
		return fmt.Errorf("%w: %s: south must be below north", ErrInvalidConfig, key)
	}
	if a.South < -90 || a.North > 90 || a.West < -180 || a.East > 180 {
		return fmt.Errorf("%w: %s: out of range", ErrInvalidConfig, key)
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows secrets and deployment specifics to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() error {
	if v := os.Getenv("RADARFUSION_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RADARFUSION_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("RADARFUSION_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("RADARFUSION_AUTH_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("RADARFUSION_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("RADARFUSION_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RADARFUSION_SOURCE_PRIORITY"); v != "" {
		c.Sources.Priority = strings.Split(v, ",")
	}
	if v := os.Getenv("RADARFUSION_CENTER"); v != "" {
		lat, lon, err := parseLatLon(v)
		if err != nil {
			return fmt.Errorf("RADARFUSION_CENTER: %w", err)
		}
		for i := range c.Feeds {
			c.Feeds[i].CenterLat = lat
			c.Feeds[i].CenterLon = lon
		}
	}
	return nil
}

// parseLatLon parses "lat,lon".
func parseLatLon(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	return lat, lon, nil
}
