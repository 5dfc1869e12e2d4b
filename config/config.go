package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath      string
	DatabaseURL string // optional Postgres archive
	LogDir      string
	ResultsDir  string
	LogLevel    string
	TestMode    bool

	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Scoring   ScoringConfig
	Cleaning  CleaningConfig
	S3        S3Config

	Models map[string]*ModelProfile
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	Headless        bool
	NavTimeout      time.Duration // single page load
	MaxNavRetries   int
	RetryDelay      time.Duration
	ListingDelay    time.Duration // pause between detail pages
	SearchDelay     time.Duration // pause between search URLs
	MaxScrolls      int
	ScrollPause     time.Duration
	MaxPerSearchURL int           // listings per search URL, 0 = unbounded
	URLBudget       time.Duration // wall clock per search URL
	RunBudget       time.Duration // wall clock per model run
}

// ScoringConfig holds the composite-score weights. They must sum to 1.0;
// Load rejects anything else at startup.
type ScoringConfig struct {
	PriceWeight   float64
	MileageWeight float64
	YearWeight    float64
}

// CleaningConfig holds the cross-model sanity filters applied by the
// cleaner. Price floors and identity rules are per-model; these are global.
type CleaningConfig struct {
	GlobalPriceMin     float64
	GlobalMileageMax   float64
	DropCommercial     bool
	DropIslands        bool
	DropDuplicates     bool
	ExcludedRegions    []string
	CommercialKeywords []string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for DO Spaces / R2
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether workbook uploads are configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

// ModelProfile is the static per-vehicle-model configuration, loaded once at
// startup from config/models/*.yaml and never mutated afterwards.
type ModelProfile struct {
	Key                 string   `yaml:"key"`
	Name                string   `yaml:"name"`
	Brand               string   `yaml:"brand"`
	Type                string   `yaml:"type"`
	PriceMin            float64  `yaml:"price_min"`
	PriceMax            float64  `yaml:"price_max"`
	MileageMax          float64  `yaml:"mileage_max"`
	YearMin             int      `yaml:"year_min"`
	YearMax             int      `yaml:"year_max"`
	SheetName           string   `yaml:"sheet_name"`
	Keywords            []string `yaml:"keywords"`
	ExcludeKeywords     []string `yaml:"exclude_keywords"`
	BrandKeywords       []string `yaml:"brand_keywords"`
	CleanPriceFloor     float64  `yaml:"clean_price_floor"`
	AllowBrandlessMatch bool     `yaml:"allow_brandless_match"`
	CronSchedule        string   `yaml:"cron_schedule"`
}

// defaultIslands lists location substrings excluded for logistics reasons
// (island territories plus Ceuta/Melilla).
var defaultIslands = []string{
	"canarias", "tenerife", "gran canaria", "fuerteventura", "lanzarote",
	"la palma", "la gomera", "el hierro", "baleares", "mallorca", "menorca",
	"ibiza", "formentera", "ceuta", "melilla", "palma de mallorca",
}

// defaultCommercialKeywords flag dealer/workshop vocabulary and legal-entity
// suffixes in seller names.
var defaultCommercialKeywords = []string{
	"concesionario", "profesional", "empresa", "dealer", "financiacion",
	"garantia", "taller", "automocion", "vehiculos", "mundimoto",
	"s.l.", "s.a.", "sociedad", "motos", "ltd", "motocity", "motocard",
	"distribuidor", "importador", "tienda", "stock",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogDir:      getEnv("LOG_DIR", "logs"),
		ResultsDir:  getEnv("RESULTS_DIR", "results"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			Headless:        getEnv("HEADLESS", "true") == "true",
			NavTimeout:      getEnvDuration("NAV_TIMEOUT", 30*time.Second),
			MaxNavRetries:   getEnvInt("NAV_RETRIES", 3),
			RetryDelay:      getEnvDuration("NAV_RETRY_DELAY", 3*time.Second),
			ListingDelay:    getEnvDuration("LISTING_DELAY", 1500*time.Millisecond),
			SearchDelay:     getEnvDuration("SEARCH_DELAY", 3*time.Second),
			MaxScrolls:      getEnvInt("MAX_SCROLLS", 10),
			ScrollPause:     getEnvDuration("SCROLL_PAUSE", 2*time.Second),
			MaxPerSearchURL: getEnvInt("MAX_PER_SEARCH_URL", 50),
			URLBudget:       getEnvDuration("URL_BUDGET", 40*time.Minute),
			RunBudget:       getEnvDuration("RUN_BUDGET", 4*time.Hour),
		},
		Scoring: ScoringConfig{
			PriceWeight:   getEnvFloat("WEIGHT_PRICE", 0.40),
			MileageWeight: getEnvFloat("WEIGHT_MILEAGE", 0.35),
			YearWeight:    getEnvFloat("WEIGHT_YEAR", 0.25),
		},
		Cleaning: CleaningConfig{
			GlobalPriceMin:     getEnvFloat("GLOBAL_PRICE_MIN", 500),
			GlobalMileageMax:   getEnvFloat("GLOBAL_MILEAGE_MAX", 80000),
			DropCommercial:     getEnv("DROP_COMMERCIAL", "true") == "true",
			DropIslands:        getEnv("DROP_ISLANDS", "true") == "true",
			DropDuplicates:     getEnv("DROP_DUPLICATES", "true") == "true",
			ExcludedRegions:    defaultIslands,
			CommercialKeywords: defaultCommercialKeywords,
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-west-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Models: make(map[string]*ModelProfile),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadModelProfiles(getEnv("MODELS_DIR", "config/models")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadModelProfiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		var profile ModelProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("parse %s: %w", entry.Name(), err)
		}

		c.Models[profile.Key] = &profile
	}

	return nil
}

// Validate checks the loaded configuration. Any problem here is fatal at
// startup, before scraping begins. Runtime scraping errors never abort a
// run; a bad profile always does.
func (c *Config) Validate() error {
	var errs []string

	sum := c.Scoring.PriceWeight + c.Scoring.MileageWeight + c.Scoring.YearWeight
	if math.Abs(sum-1.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("scoring weights must sum to 1.0, got %.3f", sum))
	}

	for key, m := range c.Models {
		if m.Key != key {
			errs = append(errs, fmt.Sprintf("model %s: key mismatch (%q in file)", key, m.Key))
		}
		if m.Name == "" || m.Brand == "" {
			errs = append(errs, fmt.Sprintf("model %s: name and brand are required", key))
		}
		if m.PriceMin <= 0 || m.PriceMin >= m.PriceMax {
			errs = append(errs, fmt.Sprintf("model %s: price bounds [%v, %v] invalid", key, m.PriceMin, m.PriceMax))
		}
		if m.YearMin < 1990 || m.YearMin > m.YearMax {
			errs = append(errs, fmt.Sprintf("model %s: year bounds [%d, %d] invalid", key, m.YearMin, m.YearMax))
		}
		if len(m.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("model %s: at least one inclusion keyword required", key))
		}
		if m.SheetName == "" {
			errs = append(errs, fmt.Sprintf("model %s: sheet_name required", key))
		}
		if m.CleanPriceFloor <= 0 {
			errs = append(errs, fmt.Sprintf("model %s: clean_price_floor required", key))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ModelKeys returns the configured model keys in deterministic order.
func (c *Config) ModelKeys() []string {
	keys := make([]string, 0, len(c.Models))
	for k := range c.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
