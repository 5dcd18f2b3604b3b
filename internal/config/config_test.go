package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONSnakeAndCamelCase(t *testing.T) {
	snake := []byte(`{"llm_provider":"openai","llm_model":"gpt-4","database_url":"bolt://x:1"}`)
	cfg, err := FromJSON(snake)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLMProvider)

	camel := []byte(`{"llmProvider":"anthropic","llmModel":"claude","databaseUrl":"bolt://y:2"}`)
	cfg2, err := FromJSON(camel)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg2.LLMProvider)
	assert.Equal(t, "bolt://y:2", cfg2.DatabaseURL)
}

func TestFromJSONNamespacingFlagsDefaultFalse(t *testing.T) {
	cfg, err := FromJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, cfg.EnableFolderNamespacing)
	assert.False(t, cfg.EnablePropertyNamespacing)
}

func TestFromJSONNamespacingFlagsSnakeAndCamelCase(t *testing.T) {
	snake := []byte(`{"enable_folder_namespacing":true,"enable_property_namespacing":true}`)
	cfg, err := FromJSON(snake)
	require.NoError(t, err)
	assert.True(t, cfg.EnableFolderNamespacing)
	assert.True(t, cfg.EnablePropertyNamespacing)

	camel := []byte(`{"enableFolderNamespacing":true,"enablePropertyNamespacing":true}`)
	cfg2, err := FromJSON(camel)
	require.NoError(t, err)
	assert.True(t, cfg2.EnableFolderNamespacing)
	assert.True(t, cfg2.EnablePropertyNamespacing)
}

func TestFromJSONInvalidJSON(t *testing.T) {
	_, err := FromJSON([]byte(`{not json`))
	require.Error(t, err)
}

func TestResolveDatabaseURLPriority(t *testing.T) {
	// direct URL wins
	url := resolveDatabaseURL(map[string]any{"database_url": "bolt://direct:1"}, "neo4j")
	assert.Equal(t, "bolt://direct:1", url)

	// typed sub-config synthesizes a falkor:// URL
	url = resolveDatabaseURL(map[string]any{
		"database_configs": map[string]any{
			"falkordb": map[string]any{"host": "10.0.0.1", "port": float64(6380)},
		},
	}, "falkordb")
	assert.Equal(t, "falkor://10.0.0.1:6380", url)

	// provider-defaulted fallback
	url = resolveDatabaseURL(map[string]any{}, "falkordb")
	assert.Equal(t, "falkor://localhost:6379", url)
	url = resolveDatabaseURL(map[string]any{}, "neo4j")
	assert.Equal(t, "bolt://localhost:7687", url)
}

func TestValidateNeverPanicsOnEmptyConfig(t *testing.T) {
	cfg := &Config{}
	violations := cfg.Validate()
	assert.NotEmpty(t, violations)
}

func TestGetEffectiveAPIKeyFallback(t *testing.T) {
	cfg := &Config{LLMProvider: "openai", LLMAPIKey: "legacy-key"}
	assert.Equal(t, "legacy-key", cfg.GetEffectiveLLMAPIKey())

	cfg.APIKeys = map[string]string{"openai": "bag-key"}
	assert.Equal(t, "bag-key", cfg.GetEffectiveLLMAPIKey())
}

func TestRedactedNeverLeaksSecrets(t *testing.T) {
	cfg := &Config{
		LLMAPIKey:        "sk-secret",
		DatabasePassword: "hunter2",
		WSAuthToken:      "tok-123",
		APIKeys:          map[string]string{"openai": "sk-1"},
	}
	red := cfg.Redacted()
	assert.Equal(t, "[REDACTED]", red["llm_api_key"])
	assert.Equal(t, "[REDACTED]", red["database_password"])
	assert.Equal(t, "[REDACTED]", red["ws_auth_token"])
}

func TestVaultRelativeNormalizesPath(t *testing.T) {
	cfg := &Config{VaultPath: "/home/user/MyVault"}
	assert.Equal(t, "Projects/2025/today.md", cfg.VaultRelative("/home/user/MyVault/Projects/2025/today.md"))
	assert.Equal(t, "Projects/2025/today.md", cfg.VaultRelative("Projects/2025/today.md"))
}
