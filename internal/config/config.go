package config

import (
	"os"
	"strings"
	"time"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"` // optional, rotated with lumberjack
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Timeout bounds dialing and each command; zero keeps go-redis defaults.
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the durable backend: redis, sqlite or memory.
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Path      string `mapstructure:"path"`       // sqlite file
	KeyPrefix string `mapstructure:"key_prefix"` // redis key prefix
}

// RSSFeed is one RSS/Atom source.
type RSSFeed struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Tier     string `mapstructure:"tier"`
	MaxItems int    `mapstructure:"max_items"`
}

// HackerNewsConfig controls the Hacker News source.
type HackerNewsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	BaseAPI string   `mapstructure:"base_api"`
	Lists   []string `mapstructure:"lists"` // top, new, best, show, ask
	Limit   int      `mapstructure:"limit"` // per list
	Tier    string   `mapstructure:"tier"`
}

// GitHubConfig controls the GitHub releases source.
type GitHubConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	BaseURL string   `mapstructure:"base_url"`
	Token   string   `mapstructure:"token"`
	Repos   []string `mapstructure:"repos"` // owner/name
	PerRepo int      `mapstructure:"per_repo"`
	Tier    string   `mapstructure:"tier"`
}

// ScrapeTarget describes a listing page and the CSS selectors to read it.
type ScrapeTarget struct {
	Name        string   `mapstructure:"name"`
	URL         string   `mapstructure:"url"`
	Tier        string   `mapstructure:"tier"`
	Item        string   `mapstructure:"item"`
	Title       string   `mapstructure:"title"`
	Link        string   `mapstructure:"link"`
	Date        string   `mapstructure:"date"`
	DateAttr    string   `mapstructure:"date_attr"`
	DateLayouts []string `mapstructure:"date_layouts"`
	Excerpt     string   `mapstructure:"excerpt"`
	MaxItems    int      `mapstructure:"max_items"`
}

// SourcesConfig groups the source adapters and aggregation limits.
type SourcesConfig struct {
	Lookback   time.Duration    `mapstructure:"lookback"`
	Timeout    time.Duration    `mapstructure:"timeout"` // per source
	MaxItems   int              `mapstructure:"max_items"`
	RSS        []RSSFeed        `mapstructure:"rss"`
	HackerNews HackerNewsConfig `mapstructure:"hackernews"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Scrape     []ScrapeTarget   `mapstructure:"scrape"`
}

// ClassifierConfig controls the external classifier and its orchestration.
type ClassifierConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	APIKeys           []string      `mapstructure:"api_keys"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"` // per key, 0 = unpaced
	BatchSize         int           `mapstructure:"batch_size"`          // 0 = derived from key count
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
	ItemTimeout       time.Duration `mapstructure:"item_timeout"`
	MaxRetries        *int          `mapstructure:"max_retries"` // nil = 2; 0 disables retries
	TopN              int           `mapstructure:"top_n"`
	MinRelevance      int           `mapstructure:"min_relevance"`
	HeuristicTTL      time.Duration `mapstructure:"heuristic_ttl"`
}

// CredentialsConfig tunes cooldown behaviour of the credential pool.
type CredentialsConfig struct {
	ErrorThreshold     int           `mapstructure:"error_threshold"`
	BaseCooldown       time.Duration `mapstructure:"base_cooldown"`
	CooldownMultiplier float64       `mapstructure:"cooldown_multiplier"`
	MaxExponent        int           `mapstructure:"max_exponent"`
	FlatCooldown       time.Duration `mapstructure:"flat_cooldown"`
}

// CacheConfig holds TTLs for the three logical caches.
type CacheConfig struct {
	SourceTTL         time.Duration `mapstructure:"source_ttl"`
	ClassificationTTL time.Duration `mapstructure:"classification_ttl"`
	OutputTTL         time.Duration `mapstructure:"output_ttl"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

// SchedulerConfig holds the refresh throttling intervals.
type SchedulerConfig struct {
	MinFetchInterval    time.Duration `mapstructure:"min_fetch_interval"`
	MinAnalysisInterval time.Duration `mapstructure:"min_analysis_interval"`
	StaleThreshold      time.Duration `mapstructure:"stale_threshold"`
	MaxProcessingTime   time.Duration `mapstructure:"max_processing_time"`
	InitTimeout         time.Duration `mapstructure:"init_timeout"`
}

// RefreshConfig controls the serve loop.
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TaxonomyConfig points at an optional keyword taxonomy override.
type TaxonomyConfig struct {
	Path string `mapstructure:"path"`
}

// DigestConfig controls the markdown digest export.
type DigestConfig struct {
	Title     string `mapstructure:"title"` // supports {.CurrentDate}
	OutputDir string `mapstructure:"output_dir"`
	Preface   string `mapstructure:"preface"`
	// Interval between digest writes while serving; zero disables the writer.
	Interval time.Duration `mapstructure:"interval"`
}

// Config is the top-level configuration structure.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Refresh     RefreshConfig     `mapstructure:"refresh"`
	Taxonomy    TaxonomyConfig    `mapstructure:"taxonomy"`
	Digest      DigestConfig      `mapstructure:"digest"`
}

// APIKeysEnv lists extra classifier keys, comma separated.
const APIKeysEnv = "CLASSIFIER_API_KEYS"

const defaultMaxRetries = 2

// Retries returns the configured retry limit, or the default when unset.
func (c ClassifierConfig) Retries() int {
	if c.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *c.MaxRetries
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "redis"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/news-radar.db"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "radar"
	}

	s := &c.Sources
	if s.Lookback <= 0 {
		s.Lookback = 72 * time.Hour
	}
	if s.Timeout <= 0 {
		s.Timeout = 20 * time.Second
	}
	if s.MaxItems <= 0 {
		s.MaxItems = 100
	}
	for i := range s.RSS {
		if s.RSS[i].Tier == "" {
			s.RSS[i].Tier = "trusted"
		}
		if s.RSS[i].MaxItems <= 0 {
			s.RSS[i].MaxItems = 30
		}
	}
	if s.HackerNews.BaseAPI == "" {
		s.HackerNews.BaseAPI = "https://hacker-news.firebaseio.com/v0"
	}
	if len(s.HackerNews.Lists) == 0 {
		s.HackerNews.Lists = []string{"top"}
	}
	if s.HackerNews.Limit <= 0 {
		s.HackerNews.Limit = 30
	}
	if s.HackerNews.Tier == "" {
		s.HackerNews.Tier = "community"
	}
	if s.GitHub.BaseURL == "" {
		s.GitHub.BaseURL = "https://api.github.com"
	}
	if s.GitHub.PerRepo <= 0 {
		s.GitHub.PerRepo = 5
	}
	if s.GitHub.Tier == "" {
		s.GitHub.Tier = "official"
	}
	for i := range s.Scrape {
		if s.Scrape[i].Tier == "" {
			s.Scrape[i].Tier = "aggregator"
		}
		if s.Scrape[i].Link == "" {
			s.Scrape[i].Link = "a"
		}
		if s.Scrape[i].MaxItems <= 0 {
			s.Scrape[i].MaxItems = 30
		}
	}

	cl := &c.Classifier
	if cl.Model == "" {
		cl.Model = "gpt-4o-mini"
	}
	if cl.BatchDelay <= 0 {
		cl.BatchDelay = time.Second
	}
	if cl.ItemTimeout <= 0 {
		cl.ItemTimeout = 15 * time.Second
	}
	if cl.MaxRetries == nil || *cl.MaxRetries < 0 {
		n := defaultMaxRetries
		cl.MaxRetries = &n
	}
	if cl.TopN <= 0 {
		cl.TopN = 30
	}
	if cl.MinRelevance <= 0 {
		cl.MinRelevance = 6
	}
	if cl.HeuristicTTL <= 0 {
		cl.HeuristicTTL = time.Hour
	}
	cl.APIKeys = mergeKeys(cl.APIKeys, os.Getenv(APIKeysEnv))

	cr := &c.Credentials
	if cr.ErrorThreshold <= 0 {
		cr.ErrorThreshold = 3
	}
	if cr.BaseCooldown <= 0 {
		cr.BaseCooldown = 30 * time.Second
	}
	if cr.CooldownMultiplier <= 1 {
		cr.CooldownMultiplier = 2
	}
	if cr.MaxExponent <= 0 {
		cr.MaxExponent = 5
	}
	if cr.FlatCooldown <= 0 {
		cr.FlatCooldown = 5 * time.Minute
	}

	if c.Cache.SourceTTL <= 0 {
		c.Cache.SourceTTL = 6 * time.Hour
	}
	if c.Cache.ClassificationTTL <= 0 {
		c.Cache.ClassificationTTL = 24 * time.Hour
	}
	if c.Cache.OutputTTL <= 0 {
		c.Cache.OutputTTL = 24 * time.Hour
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = 10 * time.Minute
	}

	sc := &c.Scheduler
	if sc.MinFetchInterval <= 0 {
		sc.MinFetchInterval = 10 * time.Minute
	}
	if sc.MinAnalysisInterval <= 0 {
		sc.MinAnalysisInterval = 15 * time.Minute
	}
	if sc.StaleThreshold <= 0 {
		sc.StaleThreshold = 30 * time.Minute
	}
	if sc.MaxProcessingTime <= 0 {
		sc.MaxProcessingTime = 5 * time.Minute
	}
	if sc.InitTimeout <= 0 {
		sc.InitTimeout = 3 * time.Second
	}

	if c.Refresh.Interval <= 0 {
		c.Refresh.Interval = 5 * time.Minute
	}
	if c.Digest.Title == "" {
		c.Digest.Title = "News Radar {.CurrentDate}"
	}
	if c.Digest.OutputDir == "" {
		c.Digest.OutputDir = "./out"
	}
}

// mergeKeys appends comma-separated keys from env, dropping blanks and duplicates.
func mergeKeys(keys []string, env string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(keys))
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range keys {
		add(k)
	}
	for _, k := range strings.Split(env, ",") {
		add(k)
	}
	return out
}
