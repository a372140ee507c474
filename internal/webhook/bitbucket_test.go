package webhook

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pushPayload = `{
	"eventKey": "repo:refs_changed",
	"actor": {"name": "jdoe"},
	"repository": {"slug": "repo-a", "project": {"key": "PROJ"}},
	"changes": [
		{"ref": {"id": "refs/heads/main", "displayId": "main"}, "refId": "refs/heads/main", "fromHash": "aaa", "toHash": "bbb", "type": "UPDATE"}
	]
}`

const tagPayload = `{
	"eventKey": "repo:refs_changed",
	"actor": {"name": "jdoe"},
	"repository": {"slug": "repo-a", "project": {"key": "PROJ"}},
	"changes": [
		{"ref": {"id": "refs/tags/v1.0.0", "displayId": "v1.0.0"}, "refId": "refs/tags/v1.0.0", "fromHash": "0000000000000000000000000000000000000000", "toHash": "ccc", "type": "ADD"}
	]
}`

const branchDeletePayload = `{
	"eventKey": "repo:refs_changed",
	"actor": {"name": "jdoe"},
	"repository": {"slug": "repo-a", "project": {"key": "PROJ"}},
	"changes": [
		{"ref": {"id": "refs/heads/old-feature", "displayId": "old-feature"}, "refId": "refs/heads/old-feature", "fromHash": "bbb", "toHash": "0000000000000000000000000000000000000000", "type": "DELETE"}
	]
}`

const prOpenedPayload = `{
	"eventKey": "pr:opened",
	"pullRequest": {
		"fromRef": {"id": "refs/heads/feature/x", "displayId": "feature/x", "latestCommit": "ddd", "repository": {"slug": "repo-a", "project": {"key": "PROJ"}}},
		"toRef": {"id": "refs/heads/main", "displayId": "main", "repository": {"slug": "repo-a", "project": {"key": "PROJ"}}},
		"author": {"user": {"name": "jdoe"}}
	}
}`

func TestBitbucketAuthenticateAcceptsMatchingToken(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "s3cr3t"})
	headers := http.Header{}
	headers.Set(sharedSecretHeader, "s3cr3t")
	assert.NoError(t, h.Authenticate(nil, headers))
}

func TestBitbucketAuthenticateRejectsMismatchedToken(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "s3cr3t"})
	headers := http.Header{}
	headers.Set(sharedSecretHeader, "wrong")
	err := h.Authenticate(nil, headers)
	assert.Error(t, err)
	var authErr *AuthFailedError
	assert.ErrorAs(t, err, &authErr)
}

func TestBitbucketAuthenticateRejectsMissingHeader(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "s3cr3t"})
	err := h.Authenticate(nil, http.Header{})
	assert.Error(t, err)
}

func TestBitbucketParsePushMapsEventType(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	ev, err := h.Parse(context.Background(), []byte(pushPayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "push", string(ev.EventType))
	assert.Equal(t, "PROJ/repo-a", ev.Repository)
	assert.Equal(t, "main", ev.Branch)
	assert.Equal(t, "bbb", ev.CommitHash)
	assert.Equal(t, "jdoe", ev.Author)
}

func TestBitbucketParseTagHasNoBranch(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	ev, err := h.Parse(context.Background(), []byte(tagPayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "tag", string(ev.EventType))
	assert.Empty(t, ev.Branch)
	assert.Equal(t, "ccc", ev.CommitHash)
}

func TestBitbucketParsePullRequestOpened(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	ev, err := h.Parse(context.Background(), []byte(prOpenedPayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "pull_request_opened", string(ev.EventType))
	assert.Equal(t, "feature/x", ev.Branch)
	assert.Equal(t, "ddd", ev.CommitHash)
	assert.Equal(t, "jdoe", ev.Author)
}

func TestBitbucketParseRefDeletionIsUnsupported(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	_, err := h.Parse(context.Background(), []byte(branchDeletePayload), http.Header{})
	require.Error(t, err)
	var unsupported *UnsupportedEventKindError
	assert.ErrorAs(t, err, &unsupported)
}

func TestBitbucketParseUnsupportedEventKind(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	_, err := h.Parse(context.Background(), []byte(`{"eventKey":"repo:comment:added"}`), http.Header{})
	require.Error(t, err)
	var unsupported *UnsupportedEventKindError
	assert.ErrorAs(t, err, &unsupported)
}

func TestBitbucketParseWithoutFetcherLeavesChangedFilesEmpty(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	ev, err := h.Parse(context.Background(), []byte(pushPayload), http.Header{})
	require.NoError(t, err)
	assert.Empty(t, ev.ChangedFiles)
}

type stubFetcher struct {
	files []string
	err   error
}

func (s stubFetcher) ChangedFiles(ctx context.Context, project, repoSlug, commitHash string) ([]string, error) {
	return s.files, s.err
}

func TestBitbucketEnrichPopulatesChangedFiles(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	h.fetcher = stubFetcher{files: []string{"Dockerfile", "docker/base/Dockerfile"}}

	ev, err := h.Parse(context.Background(), []byte(pushPayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dockerfile", "docker/base/Dockerfile"}, ev.ChangedFiles)
}

func TestBitbucketEnrichFailureDegradesToEmptyChangedFiles(t *testing.T) {
	h := NewBitbucketHandler(BitbucketConfig{Token: "x"})
	h.fetcher = stubFetcher{err: assertErr("boom")}

	ev, err := h.Parse(context.Background(), []byte(pushPayload), http.Header{})
	require.NoError(t, err)
	assert.Empty(t, ev.ChangedFiles)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
