package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// FingerprintConfig derives a stable PoolId from a normalized
// PoolConfig: canonicalizing to sorted-key JSON and hashing with SHA-256,
// so two create requests with the same configuration collide onto the
// same pool (pool_already_exists, i.e. create is idempotent-by-config).
func FingerprintConfig(cfg PoolConfig) (string, error) {
	normalized := map[string]interface{}{
		"max_browsers":          cfg.MaxBrowsers,
		"min_browsers":          cfg.MinBrowsers,
		"max_pages_per_browser": cfg.MaxPagesPerBrowser,
		"browser_idle_ttl":      cfg.BrowserIdleTTL.String(),
		"page_idle_ttl":         cfg.PageIdleTTL.String(),
		"page_max_ttl":          cfg.PageMaxTTL.String(),
		"cache_capacity":        cfg.CacheCapacity,
		"headless":              cfg.Launch.Headless,
		"stealth":               cfg.Launch.Stealth,
		"user_agent":            cfg.Launch.UserAgent,
		"chrome_path":           cfg.Launch.ChromePath,
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal pool config for fingerprinting: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16], nil
}
