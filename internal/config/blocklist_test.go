package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockList_ReloadPicksUpFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blocked_models:\n  - openai/o1-pro\n"), 0o600))

	list, err := NewBlockList(path)
	require.NoError(t, err)
	assert.True(t, list.IsBlocked("OpenAI/o1-pro"))
	assert.False(t, list.IsBlocked("openai/gpt-4o"))

	require.NoError(t, os.WriteFile(path, []byte("blocked_models:\n  - openai/gpt-4o\npremium_overrides:\n  openai/gpt-4o-mini: true\n"), 0o600))
	require.NoError(t, list.Reload())

	assert.False(t, list.IsBlocked("openai/o1-pro"))
	assert.True(t, list.IsBlocked("openai/gpt-4o"))
	premium, ok := list.PremiumOverride("openai/gpt-4o-mini")
	assert.True(t, ok)
	assert.True(t, premium)
}

func TestBlockList_PrefixesAndMissingFile(t *testing.T) {
	list, err := NewBlockList(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, list.Size())

	static := NewStaticBlockList(ModelPolicyFile{BlockedPrefixes: []string{"meta-llama/llama-guard"}})
	assert.True(t, static.IsBlocked("meta-llama/llama-guard-3-8b"))
	assert.False(t, static.IsBlocked("meta-llama/llama-3.3-70b-instruct"))
}

func TestBlockList_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blocked_models: [unterminated"), 0o600))

	_, err := NewBlockList(path)
	assert.Error(t, err)
}
