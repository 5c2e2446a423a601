package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging       LoggingConfig       `yaml:"logging"`
	LLM           LLMConfig           `yaml:"llm"`
	SummaryQuota  SummaryQuotaConfig  `yaml:"summary_quota"`
	History       HistoryConfig       `yaml:"history"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment"`
	Curation      CurationConfig      `yaml:"curation"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Storage       StorageConfig       `yaml:"storage"`
	Mongo         MongoConfig         `yaml:"mongo"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	API           APIConfig           `yaml:"api"`
	Sources       []SourceConfig      `yaml:"sources"`
	Categories    []CategoryConfig    `yaml:"categories"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LLMConfig 는 외부 추론 서비스(Gemini) 호출 설정이다.
// API 키는 config.yaml 이 아니라 .env 의 GEMINI_API_KEY 로만 주입한다.
type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	ModelName      string        `yaml:"model_name"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SummaryQuotaConfig 는 LLM 호출에 대한 속도/일일 한도를 정의한다.
type SummaryQuotaConfig struct {
	// RequestsPerMinute 는 분당 최대 요청 수이다. 0 이하면 제한 없음으로 간주한다.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// RequestsPerDay 는 일일 최대 요청 수이다. 0 이하면 제한 없음으로 간주한다.
	RequestsPerDay int `yaml:"requests_per_day"`
}

// HistoryConfig 는 중복 제거용 발송 이력 저장소 설정이다.
type HistoryConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	Backend       string `yaml:"backend"` // file | mongo
	Path          string `yaml:"path"`
	Lock          string `yaml:"lock"` // local | redis
}

type EnrichmentConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

type CurationConfig struct {
	MinSelected int `yaml:"min_selected"`
	MaxSelected int `yaml:"max_selected"`
}

type SummarizationConfig struct {
	Concurrency int `yaml:"concurrency"`
	// MaxAttempts 는 기사 하나당 요약 시도 횟수이다. 기본값 2 (최초 1회 + 재시도 1회).
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file | mongo
	Dir     string `yaml:"dir"`
}

type MongoConfig struct {
	URI    string `yaml:"uri"`
	DBName string `yaml:"db_name"`
}

type RedisConfig struct {
	Addr    string        `yaml:"addr"`
	DB      int           `yaml:"db"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RunTimeout 는 수동 트리거 실행 전체에 대한 제한 시간이다.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// SourceConfig is a single article source.
type SourceConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"` // rss | listing
	URL    string `yaml:"url"`
	Limit  int    `yaml:"limit"`
	Enrich bool   `yaml:"enrich"`
	Render bool   `yaml:"render"`
	// RenderContent 는 본문 요약용 페이지 수집 시 헤드리스 브라우저를 사용할지 여부이다.
	RenderContent bool          `yaml:"render_content"`
	Listing       ListingConfig `yaml:"listing"`
}

// ListingConfig holds CSS selectors for HTML listing pages.
type ListingConfig struct {
	Item        string `yaml:"item"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Date        string `yaml:"date"`
	DateLayout  string `yaml:"date_layout"`
	Description string `yaml:"description"`
}

// CategoryConfig 는 큐레이션 단위(카테고리)와 소속 소스 목록이다.
type CategoryConfig struct {
	Name              string   `yaml:"name"`
	Label             string   `yaml:"label"`
	Sources           []string `yaml:"sources"`
	RationaleLanguage string   `yaml:"rationale_language"`
}

var config *AppConfig

func InitApp() {
	// load environment variables
	godotenv.Load(filepath.Join(GetBasePath(), ENV_FILE))

	c, err := Load(filepath.Join(GetBasePath(), CONFIG_FILE))
	if err != nil {
		panic(err)
	}
	config = c
}

// Load reads and decodes a config file, then fills defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c AppConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

func (c *AppConfig) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "google"
	}
	if c.LLM.ModelName == "" {
		c.LLM.ModelName = "gemini-2.5-flash"
	}
	if c.LLM.RequestTimeout <= 0 {
		c.LLM.RequestTimeout = 90 * time.Second
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = 14
	}
	if c.History.Backend == "" {
		c.History.Backend = "file"
	}
	if c.History.Path == "" {
		c.History.Path = "data/history.json"
	}
	if c.History.Lock == "" {
		c.History.Lock = "local"
	}
	if c.Enrichment.Concurrency <= 0 {
		c.Enrichment.Concurrency = 10
	}
	if c.Enrichment.Timeout <= 0 {
		c.Enrichment.Timeout = 30 * time.Second
	}
	if c.Curation.MinSelected <= 0 {
		c.Curation.MinSelected = 1
	}
	if c.Curation.MaxSelected <= 0 {
		c.Curation.MaxSelected = 3
	}
	if c.Summarization.Concurrency <= 0 {
		c.Summarization.Concurrency = 6
	}
	if c.Summarization.MaxAttempts <= 0 {
		c.Summarization.MaxAttempts = 2
	}
	if c.Summarization.Timeout <= 0 {
		c.Summarization.Timeout = 2 * time.Minute
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Mongo.DBName == "" {
		c.Mongo.DBName = "ailetter"
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = 2 * time.Minute
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "ai-letter.digest.events"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.API.RunTimeout <= 0 {
		c.API.RunTimeout = 30 * time.Minute
	}
	for i := range c.Categories {
		if c.Categories[i].RationaleLanguage == "" {
			c.Categories[i].RationaleLanguage = "English"
		}
		if c.Categories[i].Label == "" {
			c.Categories[i].Label = c.Categories[i].Name
		}
	}
}

func (c *AppConfig) validate() error {
	if c.Curation.MinSelected > c.Curation.MaxSelected {
		return fmt.Errorf("curation: min_selected (%d) > max_selected (%d)", c.Curation.MinSelected, c.Curation.MaxSelected)
	}
	known := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("source without id (url=%s)", s.URL)
		}
		known[s.ID] = true
	}
	// 소스 하나는 카테고리 하나에만 속한다. 겹치면 같은 기사가 두 번 발행된다.
	owner := make(map[string]string, len(c.Sources))
	for _, cat := range c.Categories {
		for _, id := range cat.Sources {
			if !known[id] {
				return fmt.Errorf("category %s references unknown source %s", cat.Name, id)
			}
			if prev, ok := owner[id]; ok {
				return fmt.Errorf("source %s is listed in both category %s and %s", id, prev, cat.Name)
			}
			owner[id] = cat.Name
		}
	}
	return nil
}

// Retention returns the history window as a duration.
func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// SourceByID finds a configured source.
func (c AppConfig) SourceByID(id string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
