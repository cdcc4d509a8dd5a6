package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelPolicyFile is the on-disk shape of the model policy YAML.
type ModelPolicyFile struct {
	BlockedModels    []string        `yaml:"blocked_models"`
	BlockedPrefixes  []string        `yaml:"blocked_prefixes"`
	PremiumOverrides map[string]bool `yaml:"premium_overrides"`
}

// BlockList is the explicitly loaded model policy: blocked model ids plus premium overrides.
// It is constructed once at startup and refreshed through Reload.
type BlockList struct {
	path string

	mu       sync.RWMutex
	exact    map[string]struct{}
	prefixes []string
	premium  map[string]bool
	loadedAt time.Time
}

// NewBlockList loads the policy file at path. An empty path yields an empty list.
func NewBlockList(path string) (*BlockList, error) {
	b := &BlockList{path: strings.TrimSpace(path)}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewStaticBlockList builds a list without a backing file.
func NewStaticBlockList(policy ModelPolicyFile) *BlockList {
	b := &BlockList{}
	b.apply(policy)
	return b
}

// Reload re-reads the backing file. A missing file clears the list.
func (b *BlockList) Reload() error {
	if b.path == "" {
		b.apply(ModelPolicyFile{})
		return nil
	}

	data, err := os.ReadFile(os.ExpandEnv(b.path))
	if err != nil {
		if os.IsNotExist(err) {
			b.apply(ModelPolicyFile{})
			return nil
		}
		return fmt.Errorf("read model policy %s: %w", b.path, err)
	}

	var policy ModelPolicyFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &policy); err != nil {
		return fmt.Errorf("parse model policy %s: %w", b.path, err)
	}
	b.apply(policy)
	return nil
}

func (b *BlockList) apply(policy ModelPolicyFile) {
	exact := make(map[string]struct{}, len(policy.BlockedModels))
	for _, id := range policy.BlockedModels {
		if id = normalizeModelID(id); id != "" {
			exact[id] = struct{}{}
		}
	}
	prefixes := make([]string, 0, len(policy.BlockedPrefixes))
	for _, p := range policy.BlockedPrefixes {
		if p = normalizeModelID(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	premium := make(map[string]bool, len(policy.PremiumOverrides))
	for id, v := range policy.PremiumOverrides {
		premium[normalizeModelID(id)] = v
	}

	b.mu.Lock()
	b.exact = exact
	b.prefixes = prefixes
	b.premium = premium
	b.loadedAt = time.Now()
	b.mu.Unlock()
}

// IsBlocked reports whether the model id is blocked.
func (b *BlockList) IsBlocked(modelID string) bool {
	id := normalizeModelID(modelID)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.exact[id]; ok {
		return true
	}
	for _, p := range b.prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// PremiumOverride returns the forced premium flag for a model, if any.
func (b *BlockList) PremiumOverride(modelID string) (premium bool, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	premium, ok = b.premium[normalizeModelID(modelID)]
	return premium, ok
}

// Size returns the number of exact and prefix entries.
func (b *BlockList) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.exact) + len(b.prefixes)
}

// LoadedAt returns when the policy was last applied.
func (b *BlockList) LoadedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadedAt
}

func normalizeModelID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
