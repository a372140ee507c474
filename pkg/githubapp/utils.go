package githubapp

import "os"

// GetAPIBase returns the GitHub API base URL, honoring GITHUB_API for
// GitHub Enterprise Server deployments that don't talk to github.com.
func GetAPIBase() string {
	apiBase := os.Getenv("GITHUB_API")
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	return apiBase
}
