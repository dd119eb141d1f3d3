package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	HTTP        HTTPConfig     `mapstructure:"http"`
	Database    DatabaseConfig `mapstructure:"database"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Log         LogConfig      `mapstructure:"log"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Vision      VisionConfig   `mapstructure:"vision"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Debug           bool          `mapstructure:"debug"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type PipelineConfig struct {
	MaxPairDistance   float64       `mapstructure:"max_pair_distance"`
	MinTextConfidence float64       `mapstructure:"min_text_confidence"`
	UnknownText       string        `mapstructure:"unknown_text"`
	Aligner           string        `mapstructure:"aligner"`
	SmoothingFactor   float64       `mapstructure:"smoothing_factor"`
	Padding           float64       `mapstructure:"padding"`
	RunInterval       time.Duration `mapstructure:"run_interval"`
}

type VisionConfig struct {
	UploadsDir              string     `mapstructure:"uploads_dir"`
	BaseImagesDir           string     `mapstructure:"base_images_dir"`
	ClassifierMinSimilarity float64    `mapstructure:"classifier_min_similarity"`
	Detector                string     `mapstructure:"detector"`
	Recognizer              string     `mapstructure:"recognizer"`
	OCRLanguage             string     `mapstructure:"ocr_language"`
	ONNX                    ONNXConfig `mapstructure:"onnx"`
}

type ONNXConfig struct {
	LibraryPath    string  `mapstructure:"library_path"`
	VehicleModel   string  `mapstructure:"vehicle_model"`
	VehicleClasses int     `mapstructure:"vehicle_classes"`
	VehicleIDs     []int   `mapstructure:"vehicle_ids"`
	PlateModel     string  `mapstructure:"plate_model"`
	InputSize      int     `mapstructure:"input_size"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	IoUThreshold   float64 `mapstructure:"iou_threshold"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=parkmap port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.debug", false)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("pipeline.max_pair_distance", 1000.0)
	v.SetDefault("pipeline.min_text_confidence", 0.7)
	v.SetDefault("pipeline.unknown_text", "unknown")
	v.SetDefault("pipeline.aligner", "centerline")
	v.SetDefault("pipeline.smoothing_factor", 0.3)
	v.SetDefault("pipeline.padding", 0.1)
	v.SetDefault("pipeline.run_interval", 5*time.Minute)

	v.SetDefault("vision.uploads_dir", "uploads")
	v.SetDefault("vision.base_images_dir", "base_images")
	v.SetDefault("vision.classifier_min_similarity", 0.85)
	v.SetDefault("vision.detector", "sidecar")
	v.SetDefault("vision.recognizer", "sidecar")
	v.SetDefault("vision.ocr_language", "eng")
	v.SetDefault("vision.onnx.library_path", "")
	v.SetDefault("vision.onnx.vehicle_model", "models/yolov8m.onnx")
	v.SetDefault("vision.onnx.vehicle_classes", 80)
	v.SetDefault("vision.onnx.vehicle_ids", []int{3})
	v.SetDefault("vision.onnx.plate_model", "models/plate.onnx")
	v.SetDefault("vision.onnx.input_size", 640)
	v.SetDefault("vision.onnx.score_threshold", 0.25)
	v.SetDefault("vision.onnx.iou_threshold", 0.45)
}

// Load reads defaults, then the optional config file, then PARKMAP_*
// environment variables. An empty path looks for ./config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PARKMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Pipeline.MaxPairDistance <= 0 {
		return fmt.Errorf("pipeline.max_pair_distance must be positive, got %v", c.Pipeline.MaxPairDistance)
	}
	if c.Pipeline.MinTextConfidence < 0 || c.Pipeline.MinTextConfidence > 1 {
		return fmt.Errorf("pipeline.min_text_confidence must be in [0,1], got %v", c.Pipeline.MinTextConfidence)
	}
	if c.Pipeline.SmoothingFactor < 0 || c.Pipeline.SmoothingFactor > 1 {
		return fmt.Errorf("pipeline.smoothing_factor must be in [0,1], got %v", c.Pipeline.SmoothingFactor)
	}
	if c.Pipeline.Padding < 0 || c.Pipeline.Padding >= 0.5 {
		return fmt.Errorf("pipeline.padding must be in [0,0.5), got %v", c.Pipeline.Padding)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
