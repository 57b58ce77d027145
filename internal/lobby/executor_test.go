package lobby

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/journal"
	"github.com/DoyleJ11/roster-sync/internal/report"
	"github.com/DoyleJ11/roster-sync/internal/roles"
	"github.com/DoyleJ11/roster-sync/internal/roster"
)

type journalSpy struct{ entries []journal.Entry }

func (j *journalSpy) Record(e journal.Entry) { j.entries = append(j.entries, e) }

type execFixture struct {
	exec     *Executor
	roster   *roster.Roster
	sink     *report.Recorder
	journal  *journalSpy
	shuffles []engine.ShuffleOptions
	version  int64
}

func newExecFixture(t *testing.T) *execFixture {
	t.Helper()
	f := &execFixture{sink: &report.Recorder{}, journal: &journalSpy{}}
	f.roster = roster.New(roster.Options{Capacity: 16, Roles: roles.NewStatic([]int{99}, nil)})
	f.exec = NewExecutor(ExecutorConfig{
		Session: "TEST01",
		Roster:  f.roster,
		Regions: engine.DefaultLayout().Regions,
		Rand:    rand.New(rand.NewPCG(1, 1)),
		Sink:    f.sink,
		Journal: f.journal,
		OnShuffle: func(o engine.ShuffleOptions) {
			f.shuffles = append(f.shuffles, o)
		},
	})
	f.exec.SetRole(Authority)
	return f
}

// run issues the next version of a command, the way a dispatcher would.
func (f *execFixture) run(op engine.Operation, target, value int) (bool, error) {
	f.version++
	return f.exec.Execute(engine.Command{Version: f.version, Operation: op, TargetID: target, TargetValue: value})
}

func TestExecutor_AppliesEachVersionOnce(t *testing.T) {
	f := newExecFixture(t)

	cmd := engine.Command{Version: 1, Operation: engine.OpAdd, TargetID: 42}
	applied, err := f.exec.Execute(cmd)
	require.NoError(t, err)
	assert.True(t, applied)

	// Same version again, even with a different payload, is a duplicate.
	applied, err = f.exec.Execute(engine.Command{Version: 1, Operation: engine.OpAdd, TargetID: 43})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, f.roster.HasPlayerID(43))

	// Older versions are stale.
	applied, _ = f.exec.Execute(engine.Command{Version: 0, Operation: engine.OpReset, TargetID: engine.TargetAll})
	assert.False(t, applied)
	assert.True(t, f.roster.HasPlayerID(42))

	assert.Equal(t, int64(1), f.exec.LastApplied())
	assert.Len(t, f.journal.entries, 1)
	assert.Equal(t, []string{"Received Add for player 42 with request version of 1"}, f.sink.Lines())
}

func TestExecutor_FollowerIgnores(t *testing.T) {
	f := newExecFixture(t)
	f.exec.SetRole(Follower)

	applied, err := f.run(engine.OpAdd, 42, -1)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, f.roster.HasPlayerID(42))
	assert.Zero(t, f.exec.LastApplied())
	assert.Empty(t, f.sink.Lines())
}

func TestExecutor_MissingRosterIsHardError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	exec := NewExecutor(ExecutorConfig{Logger: zap.New(core)})
	exec.SetRole(Authority)

	applied, err := exec.Execute(engine.Command{Version: 1, Operation: engine.OpReset})
	assert.False(t, applied)
	assert.ErrorIs(t, err, ErrNoRoster)
	assert.Equal(t, 1, logs.Len())

	// The next command is still processed (and fails the same way) rather than wedging.
	_, err = exec.Execute(engine.Command{Version: 2, Operation: engine.OpReset})
	assert.ErrorIs(t, err, ErrNoRoster)
}

func TestExecutor_UnknownOperationIsLoggedNoop(t *testing.T) {
	f := newExecFixture(t)
	before := f.roster.Snapshot()

	applied, err := f.exec.Execute(engine.Command{Version: 1, Operation: engine.Operation(99), TargetID: 5})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, before, f.roster.Snapshot())
	assert.Equal(t, int64(1), f.exec.LastApplied())
	assert.Contains(t, f.sink.Lines()[0], "Received Invalid:99")
}

func TestExecutor_RosterRejectionIsRecoverable(t *testing.T) {
	f := newExecFixture(t)

	applied, err := f.run(engine.OpTeamChange, 7, int(engine.TeamRed))
	assert.True(t, applied, "the version is consumed")
	assert.ErrorIs(t, err, roster.ErrPlayerNotFound)
	require.Len(t, f.journal.entries, 1)
	assert.NotEmpty(t, f.journal.entries[0].Err)

	applied, err = f.run(engine.OpAdd, 7, -1)
	assert.True(t, applied)
	assert.NoError(t, err)
}

func TestExecutor_ShuffleFourTeams(t *testing.T) {
	f := newExecFixture(t)
	for id := 1; id <= 8; id++ {
		_, err := f.run(engine.OpAdd, id, -1)
		require.NoError(t, err)
	}

	opts := engine.ShuffleOptions{IncludeGreenBlueTeams: true}
	_, err := f.run(engine.OpTeamShuffle, engine.TargetAll, engine.EncodeShuffleOptions(opts))
	require.NoError(t, err)

	counts := map[engine.TeamID]int{}
	for _, p := range f.roster.Players() {
		if p.Active {
			counts[p.TeamID]++
		}
	}
	assert.Equal(t, map[engine.TeamID]int{engine.TeamRed: 2, engine.TeamYellow: 2, engine.TeamGreen: 2, engine.TeamBlue: 2}, counts)
	assert.Equal(t, []engine.ShuffleOptions{opts}, f.shuffles)
}

func TestExecutor_ShuffleOddTwoTeamsSkipsModerator(t *testing.T) {
	f := newExecFixture(t)
	for _, id := range []int{1, 2, 3, 4, 5, 99} {
		_, err := f.run(engine.OpAdd, id, -1)
		require.NoError(t, err)
	}

	_, err := f.run(engine.OpTeamShuffle, engine.TargetAll, engine.EncodeShuffleOptions(engine.ShuffleOptions{}))
	require.NoError(t, err)

	counts := map[engine.TeamID]int{}
	for _, p := range f.roster.Players() {
		if p.Active {
			counts[p.TeamID]++
		}
	}
	// 5 eligible: 2 + 2 plus the odd one on red; the moderator keeps no team.
	assert.Equal(t, map[engine.TeamID]int{engine.TeamRed: 3, engine.TeamYellow: 2, engine.TeamNone: 1}, counts)
	mod, _ := f.roster.PlayerByID(99)
	assert.Equal(t, engine.TeamNone, mod.TeamID)
}

func TestExecutor_SettingsAndTags(t *testing.T) {
	f := newExecFixture(t)

	_, err := f.run(engine.OpFriendlyFireModeChange, engine.TargetAll, int(engine.FriendlyFireReverse))
	require.NoError(t, err)
	_, err = f.run(engine.OpFriendlyFireChange, engine.TargetAll, 1)
	require.NoError(t, err)
	_, err = f.run(engine.OpTeamTagChange, engine.TargetAll, 0)
	require.NoError(t, err)
	_, err = f.run(engine.OpStaffTagChange, engine.TargetAll, 0)
	require.NoError(t, err)
	_, err = f.run(engine.OpCreatorTagChange, engine.TargetAll, 0)
	require.NoError(t, err)

	s := f.roster.Settings()
	assert.Equal(t, engine.FriendlyFireReverse, s.FriendlyFireMode)
	assert.True(t, s.FriendlyFire)
	assert.False(t, s.ShowTeamTag)
	assert.False(t, s.ShowStaffTag)
	assert.False(t, s.ShowCreatorTag)
	assert.Contains(t, f.sink.Lines()[0], "Received FriendlyFireModeChange for reverse")
}

func TestExecutor_StatsReviveSyncAndResets(t *testing.T) {
	f := newExecFixture(t)
	for _, id := range []int{1, 2} {
		_, err := f.run(engine.OpAdd, id, -1)
		require.NoError(t, err)
	}
	require.NoError(t, f.roster.RecordElimination(1, 2))

	_, err := f.run(engine.OpRevive, 2, -1)
	require.NoError(t, err)
	p, _ := f.roster.PlayerByID(2)
	assert.False(t, p.Dead)

	_, err = f.run(engine.OpStatsReset, 2, -1)
	require.NoError(t, err)
	p, _ = f.roster.PlayerByID(2)
	assert.Zero(t, p.Deaths)

	_, err = f.run(engine.OpStatsResetAll, engine.TargetAll, -1)
	require.NoError(t, err)
	p, _ = f.roster.PlayerByID(1)
	assert.Zero(t, p.Kills)

	_, err = f.run(engine.OpSync, 0, -1)
	require.NoError(t, err)
	_, err = f.run(engine.OpSyncAll, engine.TargetAll, -1)
	require.NoError(t, err)

	_, err = f.run(engine.OpTeamChange, 1, int(engine.TeamGreen))
	require.NoError(t, err)
	_, err = f.run(engine.OpTeamReset, engine.TargetAll, -1)
	require.NoError(t, err)
	p, _ = f.roster.PlayerByID(1)
	assert.Equal(t, engine.TeamNone, p.TeamID)

	_, err = f.run(engine.OpRemove, 1, -1)
	require.NoError(t, err)
	_, err = f.run(engine.OpReset, engine.TargetAll, -1)
	require.NoError(t, err)
	assert.False(t, f.roster.HasPlayerID(2))
}

func TestExecutor_RegionChangeRejectsBadIndex(t *testing.T) {
	f := newExecFixture(t)
	applied, err := f.run(engine.OpTeamRegionChange, 17, int(engine.TeamRed))
	assert.True(t, applied)
	assert.ErrorIs(t, err, engine.ErrInvalidRegion)
}
