package config

import (
	"fmt"
	"os"
	"time"

	"profiler-service/internal/llm"
	"profiler-service/internal/models"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yml"

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: debug, release or test
	} `yaml:"server"`

	LLM struct {
		Providers []llm.ProviderConfig `yaml:"providers"`
		// Consecutive failures before the failover client switches provider
		MaxFailures int `yaml:"max_failures"`
	} `yaml:"llm"`

	Fetch FetchConfig `yaml:"fetch"`

	Storage StorageConfig `yaml:"storage"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Events struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"events"`

	// Baseline is the structured report attached when a scan begins.
	// "{subject}" in Background is replaced with the subject's name.
	Baseline models.StructuredProfile `yaml:"baseline"`
}

// FetchConfig controls the source fetchers.
type FetchConfig struct {
	Renderer       string        `yaml:"renderer"` // "http" or "browser"
	Headless       *bool         `yaml:"headless"` // unset means true
	WebTimeout     time.Duration `yaml:"web_timeout"`
	SocialTimeout  time.Duration `yaml:"social_timeout"`
	SocialStagger  time.Duration `yaml:"social_stagger"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	MinSocialChars int           `yaml:"min_social_chars"`
	UserAgent      string        `yaml:"user_agent"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // "sqlite", "postgres" or "file"
	Path          string `yaml:"path"`
	DSN           string `yaml:"dsn"`
	ProfilesDir   string `yaml:"profiles_dir"`
	EncryptionKey string `yaml:"encryption_key"`
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration with every default applied, used when no
// file is present.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}

	if c.LLM.MaxFailures == 0 {
		c.LLM.MaxFailures = 3
	}

	if c.Fetch.Renderer == "" {
		c.Fetch.Renderer = "http"
	}
	if c.Fetch.Headless == nil {
		headless := true
		c.Fetch.Headless = &headless
	}
	if c.Fetch.WebTimeout == 0 {
		c.Fetch.WebTimeout = 10 * time.Second
	}
	if c.Fetch.SocialTimeout == 0 {
		c.Fetch.SocialTimeout = 15 * time.Second
	}
	if c.Fetch.SocialStagger == 0 {
		c.Fetch.SocialStagger = 500 * time.Millisecond
	}
	if c.Fetch.MinSocialChars == 0 {
		c.Fetch.MinSocialChars = 100
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/records.db"
	}
	if c.Storage.ProfilesDir == "" {
		c.Storage.ProfilesDir = "./profiles"
	}

	if c.Events.Capacity == 0 {
		c.Events.Capacity = 1000
	}

	if isZeroProfile(c.Baseline) {
		c.Baseline = DefaultBaseline()
	}

	// Expand environment variables in secrets
	for i := range c.LLM.Providers {
		c.LLM.Providers[i].APIKey = os.ExpandEnv(c.LLM.Providers[i].APIKey)
	}
	c.Storage.DSN = os.ExpandEnv(c.Storage.DSN)
	c.Storage.EncryptionKey = os.ExpandEnv(c.Storage.EncryptionKey)
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
}

func (c *Config) validate() error {
	switch c.Fetch.Renderer {
	case "http", "browser":
	default:
		return fmt.Errorf("unknown fetch renderer %q", c.Fetch.Renderer)
	}

	switch c.Storage.Backend {
	case "sqlite", "file":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// DefaultBaseline is the report attached to a fresh scan until a synthesis
// replaces it.
func DefaultBaseline() models.StructuredProfile {
	return models.StructuredProfile{
		PrimaryTraits: []string{"Narcissistic", "Manipulative", "Charm"},
		BehavioralPatterns: []string{
			"Seeks admiration and validation",
			"Difficulty with genuine empathy",
			"Exploits others for personal gain",
		},
		EmotionalTriggers: []string{"Rejection", "Criticism", "Loss of Control"},
		Background:        "{subject} exhibits classic narcissistic personality traits with manipulative tendencies.",
		Markers: map[string]string{
			"empathy_level":       "Low",
			"impulse_control":     "Moderate",
			"emotional_stability": "Unstable",
			"social_manipulation": "High",
		},
		CommunicationStyle: "Charismatic but self-centered, deflects accountability",
		ThreatAssessment:   "Moderate - Primarily psychological manipulation",
	}
}

func isZeroProfile(p models.StructuredProfile) bool {
	return len(p.PrimaryTraits) == 0 && len(p.BehavioralPatterns) == 0 &&
		len(p.EmotionalTriggers) == 0 && len(p.Markers) == 0 &&
		p.Background == "" && p.CommunicationStyle == "" && p.ThreatAssessment == ""
}
