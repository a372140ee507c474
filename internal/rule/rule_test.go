package rule

import (
	"testing"

	"github.com/acfabro/git-actions/internal/event"
	"github.com/acfabro/git-actions/internal/filter"
	"github.com/acfabro/git-actions/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, evType event.Type, branch string, files []string) *event.Event {
	t.Helper()
	ev, err := event.New(evType, event.SourceBitbucket, "PROJ/repo-a", nil)
	require.NoError(t, err)
	ev.Branch = branch
	withFiles, err := ev.WithChangedFiles(files)
	require.NoError(t, err)
	return withFiles
}

func dockerBuildRule() *Rule {
	return &Rule{
		Name:     "docker-build",
		Webhooks: map[string]struct{}{"bitbucket-repo-a": {}},
		EventTypes: map[event.Type]struct{}{
			event.TypePush: {},
		},
		Branches: filter.Filter{pattern.Exact("main")},
		Paths:    filter.Filter{pattern.Glob("Dockerfile"), pattern.Glob("docker/**/*")},
	}
}

func TestMatchesPushOnMainTouchingDockerfile(t *testing.T) {
	r := dockerBuildRule()
	ev := mustEvent(t, event.TypePush, "main", []string{"Dockerfile"})
	assert.True(t, Matches(ev, r))
}

func TestMatchesFailsOnWrongEventType(t *testing.T) {
	r := dockerBuildRule()
	ev := mustEvent(t, event.TypePullRequestOpened, "main", []string{"Dockerfile"})
	assert.False(t, Matches(ev, r))
}

func TestMatchesFailsOnWrongBranch(t *testing.T) {
	r := dockerBuildRule()
	ev := mustEvent(t, event.TypePush, "develop", []string{"Dockerfile"})
	assert.False(t, Matches(ev, r))
}

func TestMatchesFailsWhenNoChangedFileSatisfiesPathFilter(t *testing.T) {
	r := dockerBuildRule()
	ev := mustEvent(t, event.TypePush, "main", []string{"README.md"})
	assert.False(t, Matches(ev, r))
}

func TestMatchesPassesWithEmptyPathFilter(t *testing.T) {
	r := dockerBuildRule()
	r.Paths = nil
	ev := mustEvent(t, event.TypePush, "main", nil)
	assert.True(t, Matches(ev, r))
}

func TestAbsentBranchOnlySatisfiesEmptyBranchFilter(t *testing.T) {
	r := dockerBuildRule()
	ev := mustEvent(t, event.TypePush, "", []string{"Dockerfile"})
	assert.False(t, Matches(ev, r))

	r.Branches = nil
	assert.True(t, Matches(ev, r))
}

func TestMatchesIsPureAcrossRepeatedCalls(t *testing.T) {
	r := dockerBuildRule()
	ev := mustEvent(t, event.TypePush, "main", []string{"Dockerfile"})
	first := Matches(ev, r)
	second := Matches(ev, r)
	assert.Equal(t, first, second)
}
