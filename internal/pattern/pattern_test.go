package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMatchesByteForByte(t *testing.T) {
	p := Exact("main")
	assert.True(t, p.Match("main"))
	assert.False(t, p.Match("Main"))
	assert.False(t, p.Match("main2"))
}

func TestGlobDoubleStarMatchesEveryNonEmptyPath(t *testing.T) {
	p := Glob("**/*")
	require.NoError(t, Compile(p))
	for _, s := range []string{"a", "a/b", "a/b/c.txt", "Dockerfile"} {
		assert.True(t, p.Match(s), "expected **/* to match %q", s)
	}
}

func TestGlobStarNeverCrossesSlash(t *testing.T) {
	p := Glob("*")
	require.NoError(t, Compile(p))
	assert.True(t, p.Match("Dockerfile"))
	assert.False(t, p.Match("docker/Dockerfile"))
}

func TestGlobQuestionMarkMatchesOneNonSlashChar(t *testing.T) {
	p := Glob("file?.txt")
	require.NoError(t, Compile(p))
	assert.True(t, p.Match("file1.txt"))
	assert.False(t, p.Match("file12.txt"))
	assert.False(t, p.Match("file/.txt"))
}

func TestGlobBraceAlternation(t *testing.T) {
	p := Glob("*.{yml,yaml}")
	require.NoError(t, Compile(p))
	assert.True(t, p.Match("values.yml"))
	assert.True(t, p.Match("values.yaml"))
	assert.False(t, p.Match("values.json"))
}

func TestGlobDoubleStarDirectoryPrefix(t *testing.T) {
	p := Glob("docker/**/*")
	require.NoError(t, Compile(p))
	assert.True(t, p.Match("docker/Dockerfile"))
	assert.True(t, p.Match("docker/images/base/Dockerfile"))
	assert.False(t, p.Match("Dockerfile"))
}

func TestRegexCompileFailsOnBadPattern(t *testing.T) {
	_, err := Regex("[")
	assert.Error(t, err)
}

func TestRegexUnanchoredFindsAnywhere(t *testing.T) {
	p, err := Regex(`feature/\d+`)
	require.NoError(t, err)
	assert.True(t, p.Match("my/feature/123-thing"))
	assert.False(t, p.Match("my/feature/abc"))
}

func TestRegexCallerMustAnchorForFullString(t *testing.T) {
	p, err := Regex(`^main$`)
	require.NoError(t, err)
	assert.True(t, p.Match("main"))
	assert.False(t, p.Match("mainline"))
}

func TestCompileRejectsInvalidGlob(t *testing.T) {
	p := Glob("[")
	assert.Error(t, Compile(p))
}
