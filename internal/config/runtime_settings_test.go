package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeSettings_Validate(t *testing.T) {
	valid := RuntimeSettings{
		LLMAPIURL:      "https://example.test/v1",
		LLMAPIKey:      "ak-test",
		LLMModel:       "model-test",
		CronExpr:       "*/5 * * * *",
		TargetLanguage: "zh",
	}
	require.NoError(t, valid.Validate())

	invalid := valid
	invalid.CronExpr = "bad cron"
	require.Error(t, invalid.Validate())

	invalidLang := valid
	invalidLang.TargetLanguage = ""
	require.Error(t, invalidLang.Validate())
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "settings", "runtime.json")
	input := RuntimeSettings{
		LLMAPIURL:      "https://example.test/v1",
		LLMAPIKey:      "ak-test",
		LLMModel:       "model-test",
		CronExpr:       "0 0 * * *",
		TargetLanguage: "zh",
	}

	require.NoError(t, WriteRuntimeSettingsFile(filePath, input))

	got, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, input, got)

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestWithRuntimeSettings_OverridesConfig(t *testing.T) {
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("LLM_API_URL", "https://env.example/v1")
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("CRON_EXPR", "0 1 * * *")

	override := RuntimeSettings{
		LLMAPIURL:      "https://file.example/v1",
		LLMAPIKey:      "file-key",
		LLMModel:       "file-model",
		CronExpr:       "*/30 * * * *",
		TargetLanguage: "ja",
	}

	cfg, err := NewFromEnv(WithRuntimeSettings(override))
	require.NoError(t, err)
	assert.Equal(t, override.LLMAPIURL, cfg.LLM.APIURL)
	assert.Equal(t, override.LLMAPIKey, cfg.LLM.APIKey)
	assert.Equal(t, override.LLMModel, cfg.LLM.Model)
	assert.Equal(t, override.CronExpr, cfg.Intake.CronExpr)
	assert.Equal(t, "ja", cfg.Translate.TargetLanguage.String())
}

func TestRuntimeSettingsStore_UpdatePersistsFile(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "runtime-settings.json")
	initial := RuntimeSettings{
		LLMAPIURL:      "https://old.example/v1",
		LLMAPIKey:      "old-ak",
		LLMModel:       "old-model",
		CronExpr:       "0 0 * * *",
		TargetLanguage: "zh",
	}

	store, err := NewRuntimeSettingsStore(filePath, initial)
	require.NoError(t, err)

	next := RuntimeSettings{
		LLMAPIURL:      "https://new.example/v1",
		LLMAPIKey:      "new-ak",
		LLMModel:       "new-model",
		CronExpr:       "*/10 * * * *",
		TargetLanguage: "en",
	}
	got, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, next, got)

	loaded, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, next, loaded)
}

func TestRuntimeSettings_ValidateRejects(t *testing.T) {
	valid := RuntimeSettings{
		LLMAPIURL:      "https://example.test/v1",
		LLMAPIKey:      "ak-test",
		LLMModel:       "model-test",
		CronExpr:       "0 */5 * * * *",
		TargetLanguage: "vi",
	}
	require.NoError(t, valid.Validate(), "six-field expressions are accepted")

	cases := map[string]func(*RuntimeSettings){
		"missing url":   func(s *RuntimeSettings) { s.LLMAPIURL = " " },
		"relative url":  func(s *RuntimeSettings) { s.LLMAPIURL = "not a url" },
		"missing key":   func(s *RuntimeSettings) { s.LLMAPIKey = "" },
		"missing model": func(s *RuntimeSettings) { s.LLMModel = "" },
		"bad language":  func(s *RuntimeSettings) { s.TargetLanguage = "??-!!" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := valid
			mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestRuntimeSettingsStore_RejectsInvalidUpdate(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "settings.json")
	initial := RuntimeSettings{
		LLMAPIURL:      "https://old.example/v1",
		LLMAPIKey:      "old-ak",
		LLMModel:       "old-model",
		CronExpr:       "0 0 * * *",
		TargetLanguage: "vi",
	}
	store, err := NewRuntimeSettingsStore(filePath, initial)
	require.NoError(t, err)

	bad := initial
	bad.CronExpr = "every day"
	_, err = store.UpdateRuntimeSettings(bad)
	require.Error(t, err)

	got, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, initial, got)
	assert.NoFileExists(t, filePath)
}

func TestRuntimeSettings_Redacted(t *testing.T) {
	s := RuntimeSettings{LLMAPIKey: "sk-or-123456"}
	assert.Equal(t, "****3456", s.Redacted().LLMAPIKey)
	assert.Equal(t, "sk-or-123456", s.LLMAPIKey)

	short := RuntimeSettings{LLMAPIKey: "abc"}
	assert.Equal(t, "****", short.Redacted().LLMAPIKey)
}

func TestRuntimeSettingsStore_KeepsKeyWhenRedacted(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "settings.json")
	initial := RuntimeSettings{
		LLMAPIURL:      "https://old.example/v1",
		LLMAPIKey:      "secret-key-9876",
		LLMModel:       "old-model",
		CronExpr:       "0 0 * * *",
		TargetLanguage: "vi",
	}
	store, err := NewRuntimeSettingsStore(filePath, initial)
	require.NoError(t, err)

	next := initial.Redacted()
	next.LLMModel = "new-model"
	got, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, "secret-key-9876", got.LLMAPIKey)
	assert.Equal(t, "new-model", got.LLMModel)

	next.LLMAPIKey = ""
	got, err = store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, "secret-key-9876", got.LLMAPIKey)

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
