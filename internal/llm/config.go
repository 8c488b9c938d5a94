package llm

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Config configures the chat completion client used as a translation oracle.
// Any provider serving POST {APIURL}/chat/completions works; the values come
// from the LLM_* variables in internal/config.
type Config struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"` // seconds
	// OpenRouter attribution headers, both optional
	SiteURL string `json:"site_url"`
	AppName string `json:"app_name"`
}

// Validate reports every problem at once
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API key is required"))
	}
	if c.APIURL == "" {
		errs = append(errs, errors.New("API URL is required"))
	} else if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API URL %q is not absolute", c.APIURL))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, errors.New("max tokens must be greater than 0"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, errors.New("temperature must be between 0 and 2"))
	}
	if c.Timeout < 1 {
		errs = append(errs, errors.New("timeout must be greater than 0"))
	}
	return errors.Join(errs...)
}

func (c *Config) setHeaders(h http.Header) {
	h.Set("Authorization", "Bearer "+c.APIKey)
	h.Set("Content-Type", "application/json")
	if c.SiteURL != "" {
		h.Set("HTTP-Referer", c.SiteURL)
	}
	if c.AppName != "" {
		h.Set("X-Title", c.AppName)
	}
}
