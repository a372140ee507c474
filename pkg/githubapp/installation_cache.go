// Package githubapp resolves and caches GitHub App installation IDs,
// adapted from the teacher's pkg/github installation resolver to back
// internal/webhook's GitHub handler instead of a session proxy.
package githubapp

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	ghinstallation "github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v57/github"
)

type installationCacheEntry struct {
	installationID int64
	expiresAt      time.Time
}

// InstallationCache resolves a repository to the GitHub App installation
// ID with access to it, caching both the repository-level and the
// cheaper organization-level result.
type InstallationCache struct {
	repoCache sync.Map // "{appID}:{owner}/{repo}" -> installationCacheEntry
	orgCache  sync.Map // "{appID}:{org}" -> installationCacheEntry
	ttl       time.Duration
}

// NewInstallationCache builds a cache with a 24-hour entry TTL.
func NewInstallationCache() *InstallationCache {
	return &InstallationCache{ttl: 24 * time.Hour}
}

// NewInstallationCacheWithTTL builds a cache with a custom entry TTL.
func NewInstallationCacheWithTTL(ttl time.Duration) *InstallationCache {
	return &InstallationCache{ttl: ttl}
}

// GetInstallationID resolves repoFullName ("owner/repo") to an
// installation ID, checking the repo cache, then the org cache, then
// discovering it against the GitHub API as a last resort.
func (c *InstallationCache) GetInstallationID(ctx context.Context, appID int64, pemData []byte, repoFullName, apiBase string) (int64, error) {
	owner, repo, err := splitRepoFullName(repoFullName)
	if err != nil {
		return 0, err
	}

	repoKey := fmt.Sprintf("%d:%s/%s", appID, owner, repo)
	if installationID, found := c.getFromRepoCache(repoKey); found {
		return installationID, nil
	}

	orgKey := fmt.Sprintf("%d:%s", appID, owner)
	if installationID, found := c.getFromOrgCache(orgKey); found {
		c.setRepoCache(repoKey, installationID)
		return installationID, nil
	}

	installationID, err := c.discoverInstallationID(ctx, appID, pemData, owner, repo, apiBase)
	if err != nil {
		return 0, err
	}

	c.setRepoCache(repoKey, installationID)
	c.setOrgCache(orgKey, installationID)
	log.Printf("githubapp: discovered installation %d for %s", installationID, repoFullName)
	return installationID, nil
}

func splitRepoFullName(repoFullName string) (owner, repo string, err error) {
	parts := strings.Split(repoFullName, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("githubapp: malformed repository %q, expected owner/repo", repoFullName)
	}
	return parts[0], parts[1], nil
}

func (c *InstallationCache) getFromRepoCache(key string) (int64, bool) {
	return lookupEntry(&c.repoCache, key)
}

func (c *InstallationCache) getFromOrgCache(key string) (int64, bool) {
	return lookupEntry(&c.orgCache, key)
}

func lookupEntry(m *sync.Map, key string) (int64, bool) {
	raw, exists := m.Load(key)
	if !exists {
		return 0, false
	}
	entry, ok := raw.(installationCacheEntry)
	if !ok || time.Now().After(entry.expiresAt) {
		m.Delete(key)
		return 0, false
	}
	return entry.installationID, true
}

func (c *InstallationCache) setRepoCache(key string, installationID int64) {
	c.repoCache.Store(key, installationCacheEntry{installationID: installationID, expiresAt: time.Now().Add(c.ttl)})
}

func (c *InstallationCache) setOrgCache(key string, installationID int64) {
	c.orgCache.Store(key, installationCacheEntry{installationID: installationID, expiresAt: time.Now().Add(c.ttl)})
}

// discoverInstallationID lists the app's installations and returns the
// first one with access to owner/repo. GitHub does not expose a direct
// "installation for this repo" lookup by app credentials alone, so this
// walks the installation list — acceptable given the result is cached.
func (c *InstallationCache) discoverInstallationID(ctx context.Context, appID int64, pemData []byte, owner, repo, apiBase string) (int64, error) {
	transport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, pemData)
	if err != nil {
		return 0, fmt.Errorf("githubapp: build app transport: %w", err)
	}
	if apiBase != "" && apiBase != "https://api.github.com" {
		transport.BaseURL = apiBase
	}

	client, err := newClient(apiBase, transport)
	if err != nil {
		return 0, fmt.Errorf("githubapp: build app client: %w", err)
	}

	installations, _, err := client.Apps.ListInstallations(ctx, &github.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("githubapp: list installations: %w", err)
	}

	for _, installation := range installations {
		installationID := installation.GetID()
		installationTransport := ghinstallation.NewFromAppsTransport(transport, installationID)
		installationClient, err := newClient(apiBase, installationTransport)
		if err != nil {
			log.Printf("githubapp: build client for installation %d: %v", installationID, err)
			continue
		}
		if _, _, err := installationClient.Repositories.Get(ctx, owner, repo); err == nil {
			return installationID, nil
		}
	}

	return 0, fmt.Errorf("githubapp: no installation of app %d has access to %s/%s", appID, owner, repo)
}

func newClient(apiBase string, transport http.RoundTripper) (*github.Client, error) {
	if apiBase == "" || strings.Contains(apiBase, "https://api.github.com") {
		return github.NewClient(&http.Client{Transport: transport}), nil
	}
	return github.NewClient(&http.Client{Transport: transport}).WithEnterpriseURLs(apiBase, apiBase)
}

// ClearCache discards every cached entry.
func (c *InstallationCache) ClearCache() {
	clearMap(&c.repoCache)
	clearMap(&c.orgCache)
}

func clearMap(m *sync.Map) {
	m.Range(func(key, _ interface{}) bool {
		m.Delete(key)
		return true
	})
}

// GetCacheStats reports the current repo- and org-cache entry counts.
func (c *InstallationCache) GetCacheStats() (repoCount, orgCount int) {
	c.repoCache.Range(func(_, _ interface{}) bool { repoCount++; return true })
	c.orgCache.Range(func(_, _ interface{}) bool { orgCount++; return true })
	return repoCount, orgCount
}
