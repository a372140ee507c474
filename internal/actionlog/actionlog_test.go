package actionlog

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "actions.log")

	r, err := NewRecorder(path)
	require.NoError(t, err)

	require.NoError(t, r.Record(Outcome{
		Timestamp:   time.Now(),
		WebhookName: "bitbucket-repo-a",
		RuleName:    "docker-build",
		ActionKind:  "shell",
		Success:     true,
		DurationMS:  42,
	}))
	require.NoError(t, r.Record(Outcome{
		WebhookName: "bitbucket-repo-a",
		RuleName:    "docker-build",
		ActionKind:  "http",
		Success:     false,
		Error:       "timed out",
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "docker-build")
	assert.Contains(t, lines[1], "timed out")
}
