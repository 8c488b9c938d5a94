package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/MimeLyc/hardsub-translator/pkg/icron"
)

const redactedPrefix = "****"

// RuntimeSettings are the values an operator can change through the HTTP
// API. They live in SETTINGS_FILE and win over the environment on startup.
type RuntimeSettings struct {
	LLMAPIURL      string `json:"llm_api_url"`
	LLMAPIKey      string `json:"llm_api_key"`
	LLMModel       string `json:"llm_model"`
	CronExpr       string `json:"cron_expr"`
	TargetLanguage string `json:"target_language"`
}

func (s RuntimeSettings) Validate() error {
	var errs []error
	if u, err := url.ParseRequestURI(strings.TrimSpace(s.LLMAPIURL)); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("llm_api_url must be an absolute URL: %q", s.LLMAPIURL))
	}
	if strings.TrimSpace(s.LLMAPIKey) == "" {
		errs = append(errs, errors.New("llm_api_key is required"))
	}
	if strings.TrimSpace(s.LLMModel) == "" {
		errs = append(errs, errors.New("llm_model is required"))
	}
	if _, err := icron.Parser.Parse(s.CronExpr); err != nil {
		errs = append(errs, fmt.Errorf("invalid cron_expr: %w", err))
	}
	if tag, err := language.Parse(s.TargetLanguage); err != nil || tag == language.Und {
		errs = append(errs, fmt.Errorf("invalid target_language %q", s.TargetLanguage))
	}
	return errors.Join(errs...)
}

// Redacted hides all but the last four characters of the API key
func (s RuntimeSettings) Redacted() RuntimeSettings {
	key := s.LLMAPIKey
	if len(key) > 4 {
		key = key[len(key)-4:]
	} else {
		key = ""
	}
	s.LLMAPIKey = redactedPrefix + key
	return s
}

func isRedacted(key string) bool {
	return strings.HasPrefix(key, redactedPrefix)
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		LLMAPIURL:      c.LLM.APIURL,
		LLMAPIKey:      c.LLM.APIKey,
		LLMModel:       c.LLM.Model,
		CronExpr:       c.Intake.CronExpr,
		TargetLanguage: c.Translate.TargetLanguage.String(),
	}
}

// WithRuntimeSettings overlays the non-empty fields of settings
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		set := func(dst *string, v string) {
			if v = strings.TrimSpace(v); v != "" {
				*dst = v
			}
		}
		set(&c.LLM.APIURL, settings.LLMAPIURL)
		if !isRedacted(settings.LLMAPIKey) {
			set(&c.LLM.APIKey, settings.LLMAPIKey)
		}
		set(&c.LLM.Model, settings.LLMModel)
		set(&c.Intake.CronExpr, settings.CronExpr)
		if tag, err := language.Parse(settings.TargetLanguage); err == nil && tag != language.Und {
			c.Translate.TargetLanguage = tag
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return settings, nil
}

// WriteRuntimeSettingsFile replaces path atomically. The file holds the API
// key, so it is created owner-readable only.
func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(content, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RuntimeSettingsStore serves the current settings and persists updates
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{path: path, current: initial}, nil
}

// Path is where updates are persisted
func (s *RuntimeSettingsStore) Path() string {
	return s.path
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

// UpdateRuntimeSettings validates and saves next. An empty or redacted API
// key keeps the stored one, so a client can send back what it read.
func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k := strings.TrimSpace(next.LLMAPIKey); k == "" || isRedacted(k) {
		next.LLMAPIKey = s.current.LLMAPIKey
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}
	s.current = next
	return next, nil
}
