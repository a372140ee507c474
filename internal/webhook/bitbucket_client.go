package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/acfabro/git-actions/pkg/utils"
)

// ChangedFilesFetcher abstracts the outbound call Bitbucket's handler
// makes to recover a commit's changed files, so enrichment can be
// exercised in tests without a live Bitbucket Server.
type ChangedFilesFetcher interface {
	ChangedFiles(ctx context.Context, project, repoSlug, commitHash string) ([]string, error)
}

// BitbucketAPIConfig names the Bitbucket Server REST endpoint and
// credentials used for enrichment, resolved from WebhookConfig.API at
// load time (spec.md §3, WebhookConfig.api).
type BitbucketAPIConfig struct {
	BaseURL  string
	Project  string
	RepoSlug string
	Username string
	Token    string
}

// bitbucketAPIClient calls the Bitbucket Server REST API directly —
// spec.md §1 places the provider SDK deliberately out of scope, so
// there is no client library to depend on here; this is a thin,
// justified use of net/http, grounded on pkg/utils/http.go's client
// and error-handling helpers.
type bitbucketAPIClient struct {
	cfg        BitbucketAPIConfig
	httpClient *http.Client
	cache      *utils.TTLCache
}

func newBitbucketAPIClient(cfg BitbucketAPIConfig) *bitbucketAPIClient {
	return &bitbucketAPIClient{
		cfg:        cfg,
		httpClient: utils.NewDefaultHTTPClient(),
		cache:      utils.NewTTLCache(5 * time.Minute),
	}
}

type bitbucketChangesResponse struct {
	Values []struct {
		Path struct {
			ToString string `json:"toString"`
		} `json:"path"`
	} `json:"values"`
	IsLastPage bool `json:"isLastPage"`
}

// ChangedFiles lists the repository-relative paths touched by
// commitHash, paginating through Bitbucket Server's changes endpoint.
// Results are cached per commit since a commit's changed-file set
// never changes.
func (c *bitbucketAPIClient) ChangedFiles(ctx context.Context, project, repoSlug, commitHash string) ([]string, error) {
	cacheKey := fmt.Sprintf("%s/%s/%s", project, repoSlug, commitHash)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]string), nil
	}

	var files []string
	start := 0
	for {
		page, isLast, next, err := c.fetchChangesPage(ctx, project, repoSlug, commitHash, start)
		if err != nil {
			return nil, err
		}
		files = append(files, page...)
		if isLast {
			break
		}
		start = next
	}

	c.cache.Set(cacheKey, files)
	return files, nil
}

func (c *bitbucketAPIClient) fetchChangesPage(ctx context.Context, project, repoSlug, commitHash string, start int) ([]string, bool, int, error) {
	endpoint := fmt.Sprintf("%s/rest/api/1.0/projects/%s/repos/%s/commits/%s/changes",
		c.cfg.BaseURL, url.PathEscape(project), url.PathEscape(repoSlug), url.PathEscape(commitHash))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, 0, fmt.Errorf("bitbucket: build changes request: %w", err)
	}
	q := req.URL.Query()
	q.Set("start", fmt.Sprintf("%d", start))
	req.URL.RawQuery = q.Encode()
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Token)
	} else if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, 0, fmt.Errorf("bitbucket: changes request: %w", err)
	}
	defer utils.SafeCloseResponse(resp)

	if err := utils.CheckHTTPResponse(resp, endpoint); err != nil {
		return nil, false, 0, err
	}

	var parsed bitbucketChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, 0, fmt.Errorf("bitbucket: decode changes response: %w", err)
	}

	paths := make([]string, 0, len(parsed.Values))
	for _, v := range parsed.Values {
		paths = append(paths, v.Path.ToString)
	}
	return paths, parsed.IsLastPage, start + len(parsed.Values), nil
}
