package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	_ "time/tzdata"

	"atmosfera/internal/logging"
	"atmosfera/internal/rules"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Station is a monitored location used by the collector and the seeder.
type Station struct {
	Name      string  `yaml:"name" validate:"required"`
	Latitude  float64 `yaml:"latitude" validate:"latitude"`
	Longitude float64 `yaml:"longitude" validate:"longitude"`
}

var (
	instance *Config
	once     sync.Once

	validate = validator.New(validator.WithRequiredStructEnabled())
)

type Config struct {
	Dataset struct {
		// Source is "csv" or "mysql".
		Source          string   `yaml:"source" validate:"oneof=csv mysql"`
		Path            string   `yaml:"path" validate:"required_if=Source csv"`
		TimestampColumn string   `yaml:"timestamp_column"`
		StationColumn   string   `yaml:"station_column"`
		PM25Column      string   `yaml:"pm25_column"`
		CategoryColumn  string   `yaml:"category_column"`
		FeatureColumns  []string `yaml:"feature_columns"`
		TimeLayouts     []string `yaml:"time_layouts"`
		Delimiter       string   `yaml:"delimiter" validate:"omitempty,len=1"`
		Timezone        string   `yaml:"timezone"`
		// Since limits rows read from MySQL, e.g. "8760h".
		Since time.Duration `yaml:"since"`
	} `yaml:"dataset"`
	Model struct {
		AssetsPath string `yaml:"assets_path"`
		// Required makes a missing or invalid asset file fatal instead of degrading.
		Required bool `yaml:"required"`
	} `yaml:"model"`
	Rules struct {
		Language   string           `yaml:"language" validate:"omitempty,oneof=id en"`
		Thresholds rules.Thresholds `yaml:"thresholds"`
	} `yaml:"rules"`
	Similarity struct {
		Floor       float64       `yaml:"floor" validate:"gte=-1,lte=1"`
		MaxPeers    int           `yaml:"max_peers" validate:"gte=1"`
		MinOverlap  int           `yaml:"min_overlap" validate:"gte=2"`
		TrendWindow int           `yaml:"trend_window" validate:"gte=4"`
		MaxPeerAge  time.Duration `yaml:"max_peer_age" validate:"gte=0"`
	} `yaml:"similarity"`
	Server struct {
		Addr               string        `yaml:"addr"`
		Mode               string        `yaml:"mode" validate:"omitempty,oneof=debug release test"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
		PersistPredictions bool          `yaml:"persist_predictions"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
		Group    string `yaml:"group"`
	} `yaml:"redis"`
	AirQuality struct {
		MonitoredFields []string `yaml:"monitored_fields"`
		PastDays        int      `yaml:"past_days" validate:"gte=0,lte=92"`
	} `yaml:"air_quality"`
	Stations []Station      `yaml:"stations" validate:"dive"`
	Logging  logging.Config `yaml:"logging"`
}

// Load reads the config file once; later calls return the same instance.
// A .env file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		_ = godotenv.Load()

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		cfg, parseErr := Parse(data)
		if parseErr != nil {
			err = parseErr
			return
		}
		instance = cfg
	})

	return instance, err
}

// Parse decodes and validates a config document without touching the singleton.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// Defaults is the configuration used for any key the file leaves out.
func Defaults() *Config {
	c := &Config{}
	c.Dataset.Source = "csv"
	c.Dataset.Path = "data/ispu_jakarta.csv"
	c.Model.AssetsPath = "models/model.json"
	c.Rules.Language = "id"
	c.Rules.Thresholds = rules.DefaultThresholds()
	c.Similarity.Floor = 0.7
	c.Similarity.MaxPeers = 3
	c.Similarity.MinOverlap = 2
	c.Similarity.TrendWindow = 24
	c.Similarity.MaxPeerAge = 72 * time.Hour
	c.Server.Addr = ":8080"
	c.Server.Mode = "release"
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Redis.Addr = "localhost:6379"
	c.Redis.Stream = DefaultStream
	c.Redis.Group = "atmosfera-store"
	c.AirQuality.MonitoredFields = []string{"pm2_5", "pm10", "carbon_monoxide", "nitrogen_dioxide", "ozone"}
	c.Logging = logging.Config{Level: "info", Format: "console"}
	return c
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(c.AirQuality.MonitoredFields) == 0 {
		return fmt.Errorf("air_quality.monitored_fields cannot be empty")
	}
	if err := c.Rules.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid rules.thresholds: %w", err)
	}
	if c.Dataset.Timezone != "" {
		if _, err := time.LoadLocation(c.Dataset.Timezone); err != nil {
			return fmt.Errorf("invalid dataset.timezone: %w", err)
		}
	}
	return nil
}
