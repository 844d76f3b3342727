package system_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/taskprogress/internal/clock/system"
	"github.com/JakeFAU/taskprogress/internal/progress"
	"github.com/JakeFAU/taskprogress/internal/progress/listeners"
)

var (
	_ progress.Clock  = system.New()
	_ listeners.Clock = system.New()
)

// TestClockNowUTC ensures event timestamps are UTC and close to wall time.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := system.New().Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "got %v", got)
}

// TestClockStampsSnapshots drives a snapshot listener with the real clock.
func TestClockStampsSnapshots(t *testing.T) {
	t.Parallel()

	snap := listeners.NewSnapshotListener(system.New())
	reporter := progress.New()
	reporter.Register(snap)

	task := reporter.PrimaryStack().Start("index")
	defer task.Close()

	stacks := snap.Snapshot()
	require.Len(t, stacks, 1)
	require.Len(t, stacks[0].Tasks, 1)
	started := stacks[0].Tasks[0].StartedAt
	require.Equal(t, time.UTC, started.Location())
	require.False(t, started.IsZero())
}
