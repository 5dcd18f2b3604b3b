package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataJSON(t *testing.T, vaultRoot, pluginDir, content string) {
	t.Helper()
	dir := filepath.Join(vaultRoot, ".obsidian", "plugins", pluginDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), []byte(content), 0o644))
}

func TestLoadMissingFileYieldsEmptySchema(t *testing.T) {
	l := NewRegistry(4).LoaderFor(t.TempDir(), "")
	schema, err := l.Load()
	require.NoError(t, err)
	assert.True(t, schema.IsEmpty())
}

func TestLoadPrefersPrimaryPluginOverLegacy(t *testing.T) {
	vault := t.TempDir()
	writeDataJSON(t, vault, legacyPluginID, `{"entityDescriptions":{"Legacy":"old"}}`)
	writeDataJSON(t, vault, primaryPluginID, `{"entityDescriptions":{"Person":"a human"}}`)

	reg := NewRegistry(4)
	schema, err := reg.LoaderFor(vault, "").Load()
	require.NoError(t, err)
	require.Len(t, schema.EntityTypes, 1)
	assert.Equal(t, "Person", schema.EntityTypes[0].Name)
}

func TestLoadAppliesCanonicalFallbackWhenNoPropertiesSelected(t *testing.T) {
	vault := t.TempDir()
	writeDataJSON(t, vault, primaryPluginID, `{"entityDescriptions":{"Person":"a human"}}`)

	reg := NewRegistry(4)
	schema, err := reg.LoaderFor(vault, "").Load()
	require.NoError(t, err)
	require.Len(t, schema.EntityTypes, 1)

	names := fieldNames(schema.EntityTypes[0].Fields)
	assert.Contains(t, names, "givenName")
	assert.Contains(t, names, "worksFor")
	assert.Contains(t, names, "tags", "every entity type gets the universal tags field")
}

func TestLoadUnknownEntityTypeGetsGenericFallback(t *testing.T) {
	vault := t.TempDir()
	writeDataJSON(t, vault, primaryPluginID, `{"entityDescriptions":{"Spaceship":"a vessel"}}`)

	reg := NewRegistry(4)
	schema, err := reg.LoaderFor(vault, "").Load()
	require.NoError(t, err)
	names := fieldNames(schema.EntityTypes[0].Fields)
	assert.Contains(t, names, "c_name")
	assert.Contains(t, names, "aliases")
	assert.Contains(t, names, "sameAs")
}

func TestLoadExplicitPropertySelectionsOverrideCanonical(t *testing.T) {
	vault := t.TempDir()
	writeDataJSON(t, vault, primaryPluginID, `{
		"entityDescriptions": {"Person": "a human"},
		"propertySelections": {"Person": {"nickname": true, "role": false}},
		"propertyDescriptions": {"Person": {"nickname": {"fieldType": "string", "description": "informal name"}}}
	}`)

	reg := NewRegistry(4)
	schema, err := reg.LoaderFor(vault, "").Load()
	require.NoError(t, err)
	names := fieldNames(schema.EntityTypes[0].Fields)
	assert.Contains(t, names, "nickname")
	assert.NotContains(t, names, "role", "canonical fallback must not apply when explicit selections exist")
}

func TestLoadEdgeTypeMapBuildsOrderedPairs(t *testing.T) {
	vault := t.TempDir()
	writeDataJSON(t, vault, primaryPluginID, `{
		"edgeDescriptions": {"WORKS_AT": "employment relation"},
		"edgeTypeMap": [{"source": "Person", "target": "Organization", "edges": ["WORKS_AT"]}]
	}`)

	reg := NewRegistry(4)
	schema, err := reg.LoaderFor(vault, "").Load()
	require.NoError(t, err)
	require.Len(t, schema.EdgeTypes, 1)
	assert.Equal(t, []string{"WORKS_AT"}, schema.EdgeTypeMap[EdgePair{Source: "Person", Target: "Organization"}])
}

func TestLoaderIsSingleInitAndCachedByRegistry(t *testing.T) {
	vault := t.TempDir()
	writeDataJSON(t, vault, primaryPluginID, `{"entityDescriptions":{"Person":"a human"}}`)

	reg := NewRegistry(4)
	l1 := reg.LoaderFor(vault, "")
	l2 := reg.LoaderFor(vault, "")
	assert.Same(t, l1, l2, "same vault key must return the same Loader instance")

	s1, err := l1.Load()
	require.NoError(t, err)
	s2, err := l1.Load()
	require.NoError(t, err)
	assert.Same(t, s1, s2, "second Load call must return the cached result, not re-parse")
}

func fieldNames(fields []FieldSpec) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
