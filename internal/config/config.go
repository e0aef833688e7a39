package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxKeySlots is the number of numbered API key slots per provider.
const MaxKeySlots = 5

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ModelLists holds the priority-ordered model names tried per provider.
type ModelLists struct {
	Gemini []string `yaml:"gemini"`
	OpenAI []string `yaml:"openai"`
}

// DefaultModels is used when no models file is configured.
var DefaultModels = ModelLists{
	Gemini: []string{"gemini-3-flash-preview", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
	OpenAI: []string{"gpt-4o-mini", "gpt-4.1-mini", "gpt-4o"},
}

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	GeminiDefaultKey string
	GeminiKeys       [MaxKeySlots]string
	OpenAIDefaultKey string
	OpenAIKeys       [MaxKeySlots]string
	OpenAIEndpoint   string
	Provider         string
	Models           ModelLists
	QuotaCooldown    time.Duration
	RedisURL         string
	Database         string
	UploadDir        string
	Port             string
	LogMode          string
	CORSOrigins      []string
}

// Load reads configuration from the environment, providing sensible defaults. A non-nil
// error means the models file was ignored; the returned Config is still usable.
func Load() (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg, err := FromEnv()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", cfg.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}
	return cfg, err
}

// FromEnv builds a Config from the current environment without touching the filesystem
// beyond the optional models file. When AI_MODELS_FILE cannot be used the default models
// are kept and the error is returned alongside the Config.
func FromEnv() (Config, error) {
	cfg := Config{
		GeminiDefaultKey: os.Getenv("GEMINI_API_KEY"),
		OpenAIDefaultKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint:   getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		Provider:         strings.ToLower(getEnv("AI_PROVIDER", ProviderGemini)),
		Models:           DefaultModels,
		QuotaCooldown:    getDuration("QUOTA_COOLDOWN", 5*time.Minute),
		RedisURL:         os.Getenv("REDIS_URL"),
		Database:         getEnv("DATABASE_PATH", "./data/estudos.db"),
		UploadDir:        getEnv("UPLOAD_DIR", "./static/uploads"),
		Port:             getEnv("PORT", "8080"),
		LogMode:          getEnv("LOG_MODE", "development"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
	}
	for i := 0; i < MaxKeySlots; i++ {
		cfg.GeminiKeys[i] = os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i+1))
		cfg.OpenAIKeys[i] = os.Getenv(fmt.Sprintf("OPENAI_API_KEY_%d", i+1))
	}

	if path := os.Getenv("AI_MODELS_FILE"); path != "" {
		models, err := LoadModels(path)
		if err != nil {
			return cfg, fmt.Errorf("ignoring models file %s: %w", path, err)
		}
		cfg.Models = models
	}
	return cfg, nil
}

// LoadModels reads a YAML models file. Missing provider lists keep their defaults.
func LoadModels(path string) (ModelLists, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ModelLists{}, fmt.Errorf("read models file: %w", err)
	}
	var parsed ModelLists
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return ModelLists{}, fmt.Errorf("parse models file: %w", err)
	}
	out := DefaultModels
	if len(parsed.Gemini) > 0 {
		out.Gemini = parsed.Gemini
	}
	if len(parsed.OpenAI) > 0 {
		out.OpenAI = parsed.OpenAI
	}
	return out, nil
}

// GeminiKey resolves the key for slot index ("1".."5"), falling back to GEMINI_API_KEY.
func (c Config) GeminiKey(index string) string {
	return resolveKey(c.GeminiKeys, c.GeminiDefaultKey, index)
}

// OpenAIKey resolves the key for slot index ("1".."5"), falling back to OPENAI_API_KEY.
func (c Config) OpenAIKey(index string) string {
	return resolveKey(c.OpenAIKeys, c.OpenAIDefaultKey, index)
}

// KeyOrder returns every distinct configured key for provider, the selected slot first.
func (c Config) KeyOrder(provider, index string) []string {
	slots, def := c.GeminiKeys, c.GeminiDefaultKey
	if provider == ProviderOpenAI {
		slots, def = c.OpenAIKeys, c.OpenAIDefaultKey
	}

	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}
	add(resolveKey(slots, def, index))
	add(def)
	for _, k := range slots {
		add(k)
	}
	return keys
}

// HasAnyKey reports whether at least one provider key is configured.
func (c Config) HasAnyKey() bool {
	return len(c.KeyOrder(ProviderGemini, "")) > 0 || len(c.KeyOrder(ProviderOpenAI, "")) > 0
}

func resolveKey(slots [MaxKeySlots]string, def, index string) string {
	index = strings.TrimSpace(index)
	for i := 0; i < MaxKeySlots; i++ {
		if index == fmt.Sprint(i+1) && strings.TrimSpace(slots[i]) != "" {
			return slots[i]
		}
	}
	return def
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
