// Package config parses the JSON configuration blob the bridge is seeded
// with (via MCP_CONFIG_PATH or stdin) and note frontmatter. It is the
// sole config entrypoint for every other component; nothing else reads
// raw config JSON.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vaultbridge/internal/bridgeerr"
	"github.com/vaultbridge/internal/jsonx"
)

// DefaultWSPort matches the illustrative port used throughout spec.md's
// end-to-end scenarios. The original Python implementation is internally
// inconsistent about this default (BridgeConfig.ws_port defaults to 8765
// while WebSocketServer defaults to 41484); this port is fully
// configurable and this constant is never hardcoded anywhere else.
const DefaultWSPort = 41484

// FolderMapping maps a vault-relative folder prefix to a group id, with
// optional per-folder overrides.
type FolderMapping struct {
	FolderPath                  string `yaml:"folderPath" json:"folderPath"`
	GroupID                     string `yaml:"groupId" json:"groupId"`
	CustomExtractionInstructions string `yaml:"customExtractionInstructions" json:"customExtractionInstructions,omitempty"`
	SagaGrouping                 string `yaml:"sagaGrouping" json:"sagaGrouping,omitempty"`
}

// DatabaseConfig carries typed sub-config for a specific database kind,
// used only when no direct URL is supplied.
type DatabaseConfig struct {
	URI  string // neo4j
	Host string // falkordb
	Port int    // falkordb
}

// Config is the immutable per-run record every component reads from.
// Built once by FromJSON; never mutated afterward.
type Config struct {
	LLMProvider      string
	LLMModel         string
	LLMSmallModel    string
	EmbedderProvider string
	EmbedderModel    string
	RerankerProvider string
	RerankerModel    string

	DatabaseKind     string // "neo4j" | "falkordb"
	DatabaseURL      string
	DatabasePassword string
	DatabaseConfigs  map[string]DatabaseConfig

	APIKeys         map[string]string // per-provider credential bag
	LLMAPIKey       string            // legacy single key
	EmbedderAPIKey  string
	AzureEndpoint   string
	AzureAPIVersion string
	OllamaBaseURL   string

	UseCustomOntology         bool
	NamespaceStrategy         string // "vault" | "custom" | ...
	DefaultNamespace          string
	EnableFolderNamespacing   bool
	EnablePropertyNamespacing bool
	FolderNamespaceMappings   []FolderMapping
	AvailableNamespaces       []string
	GroupIDOverride           string
	GlobalExtractionInstr     string
	SagaGrouping              string // "none" | "singleSaga" | "customProperty" | "byNoteType"
	SagaCustomPropertyKey     string

	WSPort       int
	WSAuthToken  string

	Notes     []string
	VaultPath string
	ModelsPath string

	Debug              bool
	SourceDescription  string
	LogPerformance     bool
}

// firstOf returns the first present value among keys that is neither nil
// nor an empty string, preferring
// snake_case-then-camelCase in the order given by the caller. This is the
// direct Go rendering of graphiti_bridge/config.py's
// `config_dict.get('x') or config_dict.get('xCamel', default)` idiom.
func firstOf(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func strOf(m map[string]any, keys ...string) string {
	if v, ok := firstOf(m, keys...); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolOf(m map[string]any, def bool, keys ...string) bool {
	if v, ok := firstOf(m, keys...); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func intOf(m map[string]any, def int, keys ...string) int {
	if v, ok := firstOf(m, keys...); ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

func mapOf(m map[string]any, keys ...string) map[string]any {
	if v, ok := firstOf(m, keys...); ok {
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	return nil
}

func sliceOf(m map[string]any, keys ...string) []any {
	if v, ok := firstOf(m, keys...); ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}

// FromJSON builds a Config from a raw JSON blob that may mix snake_case
// and camelCase keys. Invalid JSON is a fatal ConfigInvalid error; missing
// required fields are NOT an error here — they surface later from
// Validate as a non-empty violation list.
func FromJSON(raw []byte) (*Config, error) {
	var m map[string]any
	if err := jsonx.Unmarshal(raw, &m); err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.ConfigInvalid, "invalid json", err)
	}

	cfg := &Config{
		LLMProvider:      strOf(m, "llm_provider", "llmProvider"),
		LLMModel:         strOf(m, "llm_model", "llmModel"),
		LLMSmallModel:    strOf(m, "llm_small_model", "llmSmallModel"),
		EmbedderProvider: strOf(m, "embedder_provider", "embedderProvider"),
		EmbedderModel:    strOf(m, "embedder_model", "embedderModel"),
		RerankerProvider: strOf(m, "reranker_provider", "rerankerProvider"),
		RerankerModel:    strOf(m, "reranker_model", "rerankerModel"),

		DatabaseKind:     strOf(m, "database_kind", "databaseKind", "database"),
		DatabasePassword: strOf(m, "database_password", "databasePassword"),

		LLMAPIKey:       strOf(m, "llm_api_key", "llmApiKey"),
		EmbedderAPIKey:  strOf(m, "embedder_api_key", "embedderApiKey"),
		AzureEndpoint:   strOf(m, "azure_endpoint", "azureEndpoint"),
		AzureAPIVersion: strOf(m, "azure_api_version", "azureApiVersion"),
		OllamaBaseURL:   strOf(m, "ollama_base_url", "ollamaBaseUrl"),

		UseCustomOntology:         boolOf(m, false, "use_custom_ontology", "useCustomOntology"),
		NamespaceStrategy:         strOf(m, "namespace_strategy", "namespaceStrategy"),
		DefaultNamespace:          strOf(m, "default_namespace", "defaultNamespace"),
		EnableFolderNamespacing:   boolOf(m, false, "enable_folder_namespacing", "enableFolderNamespacing"),
		EnablePropertyNamespacing: boolOf(m, false, "enable_property_namespacing", "enablePropertyNamespacing"),
		GroupIDOverride:           strOf(m, "group_id", "groupId"),
		GlobalExtractionInstr:     strOf(m, "global_extraction_instructions", "globalExtractionInstructions"),
		SagaGrouping:              strOf(m, "saga_grouping", "sagaGrouping"),
		SagaCustomPropertyKey:     strOf(m, "saga_custom_property_key", "sagaCustomPropertyKey"),

		WSPort:      intOf(m, DefaultWSPort, "ws_port", "wsPort"),
		WSAuthToken: strOf(m, "ws_auth_token", "wsAuthToken"),

		VaultPath:  strOf(m, "vault_path", "vaultPath"),
		ModelsPath: strOf(m, "models_path", "modelsPath"),

		Debug:             boolOf(m, false, "debug"),
		SourceDescription: strOf(m, "source_description", "sourceDescription"),
		LogPerformance:    boolOf(m, false, "log_performance", "logPerformance"),
	}
	if cfg.NamespaceStrategy == "" {
		cfg.NamespaceStrategy = "vault"
	}
	if cfg.DefaultNamespace == "" {
		cfg.DefaultNamespace = "obsidian-vault"
	}
	if cfg.SagaGrouping == "" {
		cfg.SagaGrouping = "byNoteType"
	}

	if apiKeys := mapOf(m, "api_keys", "apiKeys"); apiKeys != nil {
		cfg.APIKeys = make(map[string]string, len(apiKeys))
		for k, v := range apiKeys {
			if s, ok := v.(string); ok {
				cfg.APIKeys[k] = s
			}
		}
	}

	if notes := sliceOf(m, "notes"); notes != nil {
		cfg.Notes = make([]string, 0, len(notes))
		for _, n := range notes {
			if s, ok := n.(string); ok {
				cfg.Notes = append(cfg.Notes, s)
			}
		}
	}

	if ns := sliceOf(m, "available_namespaces", "availableNamespaces"); ns != nil {
		for _, n := range ns {
			if s, ok := n.(string); ok {
				cfg.AvailableNamespaces = append(cfg.AvailableNamespaces, s)
			}
		}
	}

	if fms := sliceOf(m, "folder_namespace_mappings", "folderNamespaceMappings"); fms != nil {
		for _, raw := range fms {
			fm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			cfg.FolderNamespaceMappings = append(cfg.FolderNamespaceMappings, FolderMapping{
				FolderPath:                  strOf(fm, "folderPath", "folder_path"),
				GroupID:                     strOf(fm, "groupId", "group_id"),
				CustomExtractionInstructions: strOf(fm, "customExtractionInstructions", "custom_extraction_instructions"),
				SagaGrouping:                strOf(fm, "sagaGrouping", "saga_grouping"),
			})
		}
	}

	cfg.DatabaseURL = resolveDatabaseURL(m, cfg.DatabaseKind)

	if dbConfigs := mapOf(m, "database_configs", "databaseConfigs"); dbConfigs != nil {
		cfg.DatabaseConfigs = map[string]DatabaseConfig{}
		if neo4j, ok := dbConfigs["neo4j"].(map[string]any); ok {
			cfg.DatabaseConfigs["neo4j"] = DatabaseConfig{URI: strOf(neo4j, "uri")}
		}
		if falkor, ok := dbConfigs["falkordb"].(map[string]any); ok {
			cfg.DatabaseConfigs["falkordb"] = DatabaseConfig{
				Host: strOf(falkor, "host"),
				Port: intOf(falkor, 6379, "port"),
			}
		}
	}

	return cfg, nil
}

// resolveDatabaseURL implements the 3-tier priority from
// graphiti_bridge/config.py's _get_database_url_from_config: direct URL,
// then typed sub-config synthesized into a connection string, then a
// provider-defaulted fallback.
func resolveDatabaseURL(m map[string]any, kind string) string {
	if url := strOf(m, "database_url", "databaseUrl"); url != "" {
		return url
	}
	if dbConfigs, ok := firstOf(m, "database_configs", "databaseConfigs"); ok {
		if dc, ok := dbConfigs.(map[string]any); ok {
			if kind == "falkordb" {
				if falkor, ok := dc["falkordb"].(map[string]any); ok {
					host := strOf(falkor, "host")
					port := intOf(falkor, 6379, "port")
					if host != "" {
						return fmt.Sprintf("falkor://%s:%d", host, port)
					}
				}
			}
			if neo4j, ok := dc["neo4j"].(map[string]any); ok {
				if uri := strOf(neo4j, "uri"); uri != "" {
					return uri
				}
			}
		}
	}
	if kind == "falkordb" {
		return "falkor://localhost:6379"
	}
	return "bolt://localhost:7687"
}

// Violation is a single, non-fatal config problem. Validate never
// raises; it always returns a (possibly empty) slice of these.
type Violation string

// Validate mirrors graphiti_bridge/config.py's validate(): every problem
// found is appended to the result; nothing here panics or returns an
// error.
func (c *Config) Validate() []Violation {
	var v []Violation

	if c.LLMProvider != "ollama" && c.GetEffectiveLLMAPIKey() == "" {
		v = append(v, "llm api key is required unless provider is ollama")
	}
	if c.LLMModel == "" {
		v = append(v, "llm_model is required")
	}
	if c.EmbedderModel == "" {
		v = append(v, "embedder_model is required")
	}
	if c.DatabaseURL == "" {
		v = append(v, "database_url is required")
	}
	if c.DatabaseKind == "neo4j" && c.DatabasePassword == "" {
		v = append(v, "database_password is required for neo4j")
	}
	if c.ModelsPath == "" && c.VaultPath == "" {
		v = append(v, "models_path or vault_path is required")
	}
	if len(c.Notes) == 0 {
		v = append(v, "notes must be non-empty")
	}
	if c.LLMProvider == "azure" {
		if c.AzureEndpoint == "" {
			v = append(v, "azure_endpoint is required for azure provider")
		}
		if c.AzureAPIVersion == "" {
			v = append(v, "azure_api_version is required for azure provider")
		}
	}
	if c.LLMProvider == "ollama" && c.OllamaBaseURL == "" {
		v = append(v, "ollama_base_url is required for ollama provider")
	}
	if c.UseCustomOntology && c.VaultPath == "" {
		v = append(v, "vault_path is required when use_custom_ontology is enabled")
	}

	for _, p := range []struct{ label, path string }{
		{"models_path", c.ModelsPath},
		{"vault_path", c.VaultPath},
	} {
		if p.path != "" {
			if _, err := os.Stat(p.path); err != nil {
				v = append(v, Violation(fmt.Sprintf("%s does not exist: %s", p.label, p.path)))
			}
		}
	}
	for _, note := range c.Notes {
		p := note
		if !filepath.IsAbs(p) && c.VaultPath != "" {
			p = filepath.Join(c.VaultPath, note)
		}
		if _, err := os.Stat(p); err != nil {
			v = append(v, Violation(fmt.Sprintf("note does not exist: %s", note)))
		}
	}

	return v
}

// GetEffectiveLLMAPIKey returns the per-provider key if present in the
// credential bag, else the legacy singular field.
func (c *Config) GetEffectiveLLMAPIKey() string {
	if c.APIKeys != nil {
		if k, ok := c.APIKeys[c.LLMProvider]; ok && k != "" {
			return k
		}
	}
	return c.LLMAPIKey
}

// GetEffectiveEmbedderAPIKey falls back further than the LLM key lookup:
// per-provider bag, then the embedder's own legacy field, then the LLM
// legacy field, matching the original's permissive fallback chain.
func (c *Config) GetEffectiveEmbedderAPIKey() string {
	if c.APIKeys != nil {
		if k, ok := c.APIKeys[c.EmbedderProvider]; ok && k != "" {
			return k
		}
	}
	if c.EmbedderAPIKey != "" {
		return c.EmbedderAPIKey
	}
	return c.LLMAPIKey
}

// Redacted renders the config safe for logging: credentials are replaced
// with a fixed marker and the notes list is summarized as a count rather
// than full paths, mirroring config.py's to_dict() redaction.
func (c *Config) Redacted() map[string]any {
	redactedKeys := make(map[string]string, len(c.APIKeys))
	for k := range c.APIKeys {
		redactedKeys[k] = "[REDACTED]"
	}
	out := map[string]any{
		"llm_provider":      c.LLMProvider,
		"llm_model":         c.LLMModel,
		"embedder_provider": c.EmbedderProvider,
		"embedder_model":    c.EmbedderModel,
		"database_kind":     c.DatabaseKind,
		"database_url":      c.DatabaseURL,
		"notes_count":       len(c.Notes),
		"ws_port":           c.WSPort,
		"debug":             c.Debug,
	}
	if len(redactedKeys) > 0 {
		out["api_keys"] = redactedKeys
	}
	if c.LLMAPIKey != "" {
		out["llm_api_key"] = "[REDACTED]"
	}
	if c.DatabasePassword != "" {
		out["database_password"] = "[REDACTED]"
	}
	if c.WSAuthToken != "" {
		out["ws_auth_token"] = "[REDACTED]"
	}
	return out
}

// VaultRelative normalizes an absolute or vault-relative note path to a
// forward-slash path relative to the vault root, used by namespace
// resolution (C2) and schema loading (C3) alike.
func (c *Config) VaultRelative(notePath string) string {
	p := strings.ReplaceAll(notePath, "\\", "/")
	root := strings.ReplaceAll(c.VaultPath, "\\", "/")
	if root == "" {
		return strings.TrimPrefix(p, "/")
	}
	root = strings.TrimSuffix(root, "/")
	if strings.HasPrefix(strings.ToLower(p), strings.ToLower(root)+"/") {
		return p[len(root)+1:]
	}
	if strings.EqualFold(p, root) {
		return ""
	}
	return strings.TrimPrefix(p, "/")
}
