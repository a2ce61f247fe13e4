package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AppName          = "domus"
	DefaultBaseURL   = "https://suumo.jp"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultPageSize  = 100
	DefaultWait      = 3 * time.Second
)

type Config struct {
	Crawler   CrawlerConfig
	Cache     CacheConfig
	Postgres  PostgresConfig
	S3        S3Config
	Scheduler SchedulerConfig
	DBPath    string
	LogPath   string
	LogLevel  string
	Searches  []SearchConfig
	Landmarks []Landmark
}

type CrawlerConfig struct {
	BaseURL      string
	UserAgent    string
	WaitInterval time.Duration
	PageSize     int
	Timeout      time.Duration
}

type CacheConfig struct {
	Backend       string // sqlite or redis
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type PostgresConfig struct {
	DBURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SchedulerConfig struct {
	Cron string
}

// SearchConfig is one search run by the daemon.
type SearchConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Detailed bool   `yaml:"detailed"`
	UseCache bool   `yaml:"use_cache"`
}

// Landmark is a fixed point the feature table measures distance to.
type Landmark struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Crawler: CrawlerConfig{
			BaseURL:      getEnv("BASE_URL", DefaultBaseURL),
			UserAgent:    getEnv("USER_AGENT", DefaultUserAgent),
			WaitInterval: getEnvDuration("WAIT_INTERVAL", DefaultWait),
			PageSize:     getEnvInt("PAGE_SIZE", DefaultPageSize),
			Timeout:      getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			Backend:       getEnv("CACHE_BACKEND", "sqlite"),
			Path:          getEnv("CACHE_DB_PATH", DefaultCachePath()),
			RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisPrefix:   getEnv("REDIS_PREFIX", "domus:page:"),
		},
		Postgres: PostgresConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "feature-tables/"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		DBPath:   getEnv("DB_PATH", "domus.db"),
		LogPath:  getEnv("LOG_PATH", "domus.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.loadYAML(getEnv("SEARCHES_FILE", "config/searches.yaml"), &cfg.Searches); err != nil {
		return nil, err
	}
	if err := cfg.loadYAML(getEnv("LANDMARKS_FILE", "config/landmarks.yaml"), &cfg.Landmarks); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultCachePath keeps the page cache out of the working directory.
func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, AppName, "pages.db")
}

// loadYAML decodes a list file into out. A missing file is not an error.
func (c *Config) loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, out)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("3s") or plain seconds ("3", "1.5").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return defaultVal
}
