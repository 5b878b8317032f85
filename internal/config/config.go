package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	SubmitPerMinute int           `yaml:"submit_per_minute"` // per-client submit rate limit
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // completed-result cache TTL
}

type AIConfig struct {
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	OpenAIKey       string `yaml:"openai_key"`
	DefaultModel    string `yaml:"default_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
	ScriptAttempts  int    `yaml:"script_attempts"`  // generate-validate retries
}

type RendererConfig struct {
	Binary     string        `yaml:"binary"`
	Quality    string        `yaml:"quality"` // manim -q flag value, e.g. "l"
	FPS        int           `yaml:"fps"`
	Resolution string        `yaml:"resolution"` // "640,360"
	Timeout    time.Duration `yaml:"timeout"`
	WorkDir    string        `yaml:"work_dir"`
}

type TTSConfig struct {
	ElevenKey string `yaml:"eleven_key"`
	VoiceID   string `yaml:"voice_id"`
}

type S3Config struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Bucket    string        `yaml:"bucket"`
	UseSSL    bool          `yaml:"use_ssl"`
	URLExpiry time.Duration `yaml:"url_expiry"`
}

type LocalStorageConfig struct {
	Dir string `yaml:"dir"`
}

type StorageConfig struct {
	Backend string             `yaml:"backend"` // s3 | local
	S3      S3Config           `yaml:"s3"`
	Local   LocalStorageConfig `yaml:"local"`
}

type SearchConfig struct {
	YouTubeKey string `yaml:"youtube_key"`
	MaxResults int    `yaml:"max_results"`
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	StaleAfter   time.Duration `yaml:"stale_after"`
}

type KBConfig struct {
	Source string `yaml:"source"` // markdown file or directory
	TopK   int    `yaml:"top_k"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Renderer RendererConfig `yaml:"renderer"`
	TTS      TTSConfig      `yaml:"tts"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Worker   WorkerConfig   `yaml:"worker"`
	KB       KBConfig       `yaml:"kb"`
	Admin    AdminConfig    `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Server.SubmitPerMinute <= 0 {
		cfg.Server.SubmitPerMinute = 6
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "text-embedding-004"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 8192
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.ScriptAttempts <= 0 {
		cfg.AI.ScriptAttempts = 3
	}
	if cfg.Renderer.Binary == "" {
		cfg.Renderer.Binary = "manim"
	}
	if cfg.Renderer.Quality == "" {
		cfg.Renderer.Quality = "l"
	}
	if cfg.Renderer.FPS <= 0 {
		cfg.Renderer.FPS = 15
	}
	if cfg.Renderer.Resolution == "" {
		cfg.Renderer.Resolution = "640,360"
	}
	if cfg.Renderer.Timeout <= 0 {
		cfg.Renderer.Timeout = 5 * time.Minute
	}
	if cfg.Renderer.WorkDir == "" {
		cfg.Renderer.WorkDir = os.TempDir()
	}
	if cfg.TTS.VoiceID == "" {
		cfg.TTS.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.S3.URLExpiry <= 0 {
		cfg.Storage.S3.URLExpiry = 24 * time.Hour
	}
	if cfg.Storage.Local.Dir == "" {
		cfg.Storage.Local.Dir = "videos"
	}
	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = 3
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 2
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 500 * time.Millisecond
	}
	if cfg.Worker.MaxAttempts <= 0 {
		cfg.Worker.MaxAttempts = 3
	}
	if cfg.Worker.StaleAfter <= 0 {
		cfg.Worker.StaleAfter = 15 * time.Minute
	}
	if cfg.KB.TopK <= 0 {
		cfg.KB.TopK = 3
	}
}

func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.AI.GeminiKey == "" && cfg.AI.OpenAIKey == "" && !cfg.Runtime.Dev {
		return errors.New("ai.gemini_key or ai.openai_key is required")
	}
	// References are a required pipeline stage; a missing key would burn
	// every job's attempt budget at the search step.
	if cfg.Search.YouTubeKey == "" && !cfg.Runtime.Dev {
		return errors.New("search.youtube_key is required")
	}
	switch cfg.Storage.Backend {
	case "local":
	case "s3":
		if cfg.Storage.S3.Endpoint == "" || cfg.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.endpoint and storage.s3.bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be s3 or local, got %q", cfg.Storage.Backend)
	}
	return nil
}
