package gatmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseContext() Context {
	return Context{
		Event: map[string]interface{}{
			"branch":      "main",
			"commit_hash": "abc123",
			"payload": map[string]interface{}{
				"pusher": map[string]interface{}{
					"name": "jdoe",
				},
			},
		},
		Env: map[string]string{
			"TOKEN": "s3cr3t",
		},
	}
}

func TestRenderInterpolatesBareDottedPath(t *testing.T) {
	tpl, err := Parse("branch={{ event.branch }} sha={{event.commit_hash}}")
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.Equal(t, "branch=main sha=abc123", out)
}

func TestRenderReadsEnv(t *testing.T) {
	tpl, err := Parse("Authorization: Bearer {{ env.TOKEN }}")
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.Equal(t, "Authorization: Bearer s3cr3t", out)
}

func TestRenderDescendsNestedPayload(t *testing.T) {
	tpl, err := Parse("{{ event.payload.pusher.name }}")
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.Equal(t, "jdoe", out)
}

func TestMissingLeafRendersEmptyString(t *testing.T) {
	tpl, err := Parse("author=[{{ event.author }}]")
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.Equal(t, "author=[]", out)
}

func TestMissingIntermediateSegmentFailsRender(t *testing.T) {
	tpl, err := Parse("{{ event.payload.missing.deep }}")
	require.NoError(t, err)

	_, err = tpl.Render(baseContext())
	assert.Error(t, err)
}

func TestDereferencingThroughANonObjectFails(t *testing.T) {
	tpl, err := Parse("{{ event.branch.nope }}")
	require.NoError(t, err)

	_, err = tpl.Render(baseContext())
	assert.Error(t, err)
}

func TestJSONEncodeFilterSerializesValue(t *testing.T) {
	tpl, err := Parse(`{{ event.payload | json_encode }}`)
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.JSONEq(t, `{"pusher":{"name":"jdoe"}}`, out)
}

func TestSliceFilterTruncatesToEnd(t *testing.T) {
	tpl, err := Parse(`{{ event.commit_hash | slice(end=3) }}`)
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestSliceFilterClampsWhenEndExceedsLength(t *testing.T) {
	tpl, err := Parse(`{{ event.branch | slice(end=100) }}`)
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.Equal(t, "main", out)
}

func TestSliceFilterRequiresEndArgument(t *testing.T) {
	tpl, err := Parse(`{{ event.branch | slice() }}`)
	require.NoError(t, err)

	_, err = tpl.Render(baseContext())
	assert.Error(t, err)
}

func TestUnknownFilterFailsRender(t *testing.T) {
	tpl, err := Parse(`{{ event.branch | uppercase }}`)
	require.NoError(t, err)

	_, err = tpl.Render(baseContext())
	assert.Error(t, err)
}

func TestParseRejectsUnterminatedExpr(t *testing.T) {
	_, err := Parse("{{ event.branch")
	assert.Error(t, err)
}

func TestParseRejectsEmptyExpr(t *testing.T) {
	_, err := Parse("{{ }}")
	assert.Error(t, err)
}

func TestParseRejectsMalformedFilterArgs(t *testing.T) {
	_, err := Parse(`{{ event.branch | slice(end) }}`)
	assert.Error(t, err)
}

func TestLiteralTextIsPassedThroughUnchanged(t *testing.T) {
	tpl, err := Parse("no expressions here")
	require.NoError(t, err)

	out, err := tpl.Render(baseContext())
	require.NoError(t, err)
	assert.Equal(t, "no expressions here", out)
}
