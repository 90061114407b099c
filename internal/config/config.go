package config

import (
	"fmt"
	"os"
	"strings"

	"compress-tool-go/internal/media"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	Formats     FormatsConfig     `mapstructure:"formats"`
	Compression CompressionConfig `mapstructure:"compression"`
	Encoder     EncoderConfig     `mapstructure:"encoder"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// FormatsConfig lists the recognized extensions, without the leading dot.
type FormatsConfig struct {
	Images []string `mapstructure:"images"`
	Videos []string `mapstructure:"videos"`
}

// CompressionConfig holds the job defaults.
type CompressionConfig struct {
	ConvertImages  bool `mapstructure:"convert_images"`
	GeneratePoster bool `mapstructure:"generate_poster"`
	Workers        int  `mapstructure:"workers"`
}

// EncoderConfig tells where to look for ffmpeg.
type EncoderConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	DataDir    string `mapstructure:"data_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Formats: FormatsConfig{
			Images: append([]string(nil), media.DefaultImageExtensions...),
			Videos: append([]string(nil), media.DefaultVideoExtensions...),
		},
		Compression: CompressionConfig{
			ConvertImages:  true,
			GeneratePoster: true,
			Workers:        1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "compress-tool.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables. A
// .env file in the working directory is loaded first if present.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	config := DefaultConfig()
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.compress-tool")
		v.AddConfigPath("/etc/compress-tool")
	}

	v.SetEnvPrefix("COMPRESS_TOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("formats.images", c.Formats.Images)
	v.SetDefault("formats.videos", c.Formats.Videos)
	v.SetDefault("compression.convert_images", c.Compression.ConvertImages)
	v.SetDefault("compression.generate_poster", c.Compression.GeneratePoster)
	v.SetDefault("compression.workers", c.Compression.Workers)
	v.SetDefault("encoder.ffmpeg_path", c.Encoder.FFmpegPath)
	v.SetDefault("encoder.data_dir", c.Encoder.DataDir)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	c.Formats.Images = normalizeExtensions(c.Formats.Images)
	c.Formats.Videos = normalizeExtensions(c.Formats.Videos)

	if len(c.Formats.Images) == 0 {
		return fmt.Errorf("formats.images must not be empty")
	}
	if len(c.Formats.Videos) == 0 {
		return fmt.Errorf("formats.videos must not be empty")
	}
	images := make(map[string]bool, len(c.Formats.Images))
	for _, ext := range c.Formats.Images {
		images[ext] = true
	}
	for _, ext := range c.Formats.Videos {
		if images[ext] {
			return fmt.Errorf("extension %q listed as both image and video", ext)
		}
	}

	if c.Compression.Workers <= 0 {
		c.Compression.Workers = 1
	}

	if c.Encoder.FFmpegPath != "" {
		c.Encoder.FFmpegPath = os.ExpandEnv(c.Encoder.FFmpegPath)
	}

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// FormatSet returns the configured extensions as an immutable set.
func (c *Config) FormatSet() media.FormatSet {
	return media.NewFormatSet(c.Formats.Images, c.Formats.Videos)
}

// normalizeExtensions lowercases, strips the dot and drops empty and
// repeated entries.
func normalizeExtensions(extensions []string) []string {
	seen := make(map[string]bool, len(extensions))
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = media.NormalizeExtension(strings.TrimSpace(ext))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		normalized = append(normalized, ext)
	}
	return normalized
}
