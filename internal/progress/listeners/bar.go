package listeners

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

const defaultBarWidth = 20

var (
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	filledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

// BarListener renders one line per primary-stack transition, indented by
// nesting depth. Worker stacks are ignored.
type BarListener struct {
	mu    sync.Mutex
	out   io.Writer
	width int
}

// NewBarListener writes to out. A non-positive width uses the default.
func NewBarListener(out io.Writer, width int) *BarListener {
	if width <= 0 {
		width = defaultBarWidth
	}
	return &BarListener{out: out, width: width}
}

// AllStacks implements progress.Listener.
func (*BarListener) AllStacks() bool { return false }

// HandleNewTask implements progress.Listener.
func (b *BarListener) HandleNewTask(t *progress.Task) {
	b.write(t, stepStyle.Render("started"))
}

// HandleTaskCompleted implements progress.Listener.
func (b *BarListener) HandleTaskCompleted(t *progress.Task) {
	b.write(t, doneStyle.Render("done"))
}

// HandleTaskAdvancement implements progress.Listener.
func (b *BarListener) HandleTaskAdvancement(t *progress.Task, _ string) {
	b.write(t, stepStyle.Render(t.StepName()))
}

func (b *BarListener) write(t *progress.Task, status string) {
	line := strings.Repeat("  ", max(t.Depth(), 0)) +
		nameStyle.Render(t.Name()) + " " + b.bar(t) + " " + status + "\n"

	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.out, line)
}

// bar draws [####----] n/total for bounded tasks and "step n" otherwise.
func (b *BarListener) bar(t *progress.Task) string {
	started := t.StepIndex() + 1
	total, bounded := t.TotalSteps()
	if !bounded {
		return fmt.Sprintf("step %d", started)
	}
	filled := b.width
	if total > 0 {
		filled = int(int64(b.width) * started / total)
	}
	return "[" +
		filledStyle.Render(strings.Repeat("#", filled)) +
		emptyStyle.Render(strings.Repeat("-", b.width-filled)) +
		"] " + fmt.Sprintf("%d/%d", started, total)
}
