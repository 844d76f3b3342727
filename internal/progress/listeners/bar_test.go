package listeners

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

// TestBarListenerRendersPrimaryTasks writes one line per primary transition.
func TestBarListenerRendersPrimaryTasks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := progress.New()
	r.Register(NewBarListener(&buf, 4))

	build := r.PrimaryStack().Start("build", progress.WithTotal(2))
	build.Advance("compile")
	unit := r.PrimaryStack().Start("unit")
	unit.Advance("parse")
	unit.Close()
	build.Advance("link")
	build.Close()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	require.Contains(t, lines[0], "build")
	require.Contains(t, lines[0], "0/2")
	require.Contains(t, lines[0], "started")
	require.Contains(t, lines[1], "1/2")
	require.Contains(t, lines[1], "compile")
	require.True(t, strings.HasPrefix(lines[2], "  "), "nested task is indented")
	require.Contains(t, lines[3], "step 1")
	require.Contains(t, lines[3], "parse")
	require.Contains(t, lines[5], "2/2")
	require.Contains(t, lines[6], "done")
}

// TestBarListenerIgnoresWorkerStacks skips non-primary stacks.
func TestBarListenerIgnoresWorkerStacks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := progress.New()
	r.Register(NewBarListener(&buf, 0))

	task := r.NewStack().Start("worker", progress.WithTotal(1))
	task.Advance("only")
	task.Close()

	require.Empty(t, buf.String())
}
