package graphclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vaultbridge/internal/mcpbridge"
)

func TestDedupeNodesRemovesDuplicatesAndAppliesFilters(t *testing.T) {
	in := []mcpbridge.NodeResult{
		{UUID: "1", GroupID: "work", Labels: []string{"Person"}},
		{UUID: "1", GroupID: "work", Labels: []string{"Person"}},
		{UUID: "2", GroupID: "personal", Labels: []string{"Place"}},
		{UUID: "3", GroupID: "work", Labels: []string{"Place"}},
	}

	out := dedupeNodes("q", in, []string{"work"}, nil, 10)
	assert.Len(t, out, 2)

	out = dedupeNodes("q", in, []string{"work"}, []string{"Person"}, 10)
	assert.Len(t, out, 1)
	assert.Equal(t, "1", out[0].UUID)
}

func TestDedupeNodesRespectsLimit(t *testing.T) {
	in := []mcpbridge.NodeResult{
		{UUID: "1"}, {UUID: "2"}, {UUID: "3"},
	}
	out := dedupeNodes("q", in, nil, nil, 2)
	assert.Len(t, out, 2)
}

func TestGroupFilterEmptyWhenNoGroupID(t *testing.T) {
	assert.Equal(t, "", groupFilter(""))
	assert.Contains(t, groupFilter("work"), "group_id")
}
