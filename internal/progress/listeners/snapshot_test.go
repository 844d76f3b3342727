package listeners

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// TestSnapshotListenerTracksStacks reports primary and worker stacks separately.
func TestSnapshotListenerTracksStacks(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	snap := NewSnapshotListener(fixedClock{now: now})
	r := progress.New()
	r.Register(snap)

	build := r.PrimaryStack().Start("build", progress.WithTotal(2))
	build.Advance("compile")

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		unit := r.NewStack().Start("unit")
		unit.Advance("parse")
		close(started)
		<-release
		unit.Close()
	}()
	<-started

	stacks := snap.Snapshot()
	require.Len(t, stacks, 2)
	require.True(t, stacks[0].Primary)
	require.Equal(t, "build", stacks[0].Tasks[0].Name)
	require.Equal(t, "compile", stacks[0].Tasks[0].Step)
	require.Equal(t, int64(2), stacks[0].Tasks[0].Total)
	require.Equal(t, now, stacks[0].Tasks[0].StartedAt)
	require.False(t, stacks[1].Primary)
	require.Equal(t, "unit", stacks[1].Tasks[0].Name)
	require.Equal(t, int64(-1), stacks[1].Tasks[0].Total)
	require.Equal(t, 2, snap.Active())

	close(release)
	wg.Wait()
	require.Len(t, snap.Snapshot(), 1)

	build.Close()
	require.Empty(t, snap.Snapshot())
	require.Zero(t, snap.Active())
}

// TestSnapshotListenerNesting keeps tasks ordered by depth.
func TestSnapshotListenerNesting(t *testing.T) {
	t.Parallel()

	snap := NewSnapshotListener(nil)
	r := progress.New()
	r.Register(snap)
	s := r.PrimaryStack()

	outer := s.Start("outer", progress.WithTotal(1))
	outer.Advance("a")
	inner := s.Start("inner")

	stacks := snap.Snapshot()
	require.Len(t, stacks, 1)
	require.Len(t, stacks[0].Tasks, 2)
	require.Equal(t, 0, stacks[0].Tasks[0].Depth)
	require.Equal(t, 1, stacks[0].Tasks[1].Depth)

	stacks[0].Tasks[0].Name = "mutated"
	require.Equal(t, "outer", snap.Snapshot()[0].Tasks[0].Name)

	inner.Close()
	outer.Close()
}
