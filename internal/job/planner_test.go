package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopshq/mimir-cost-datasource/internal/apperr"
	"github.com/finopshq/mimir-cost-datasource/internal/directory"
)

type fakeDirectory struct {
	agents       []directory.Agent
	err          error
	gotWorkspace string
}

func (f *fakeDirectory) ListAgents(_ context.Context, workspaceID string) (*directory.AgentList, error) {
	f.gotWorkspace = workspaceID
	if f.err != nil {
		return nil, f.err
	}
	return &directory.AgentList{TotalCount: len(f.agents), Results: f.agents}, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func newTestPlanner(dir AccountDirectory, now time.Time) *Planner {
	p := NewPlanner(dir, zerolog.Nop())
	p.now = func() time.Time { return now }
	return p
}

func enabledAgent(id, cluster string) directory.Agent {
	return directory.Agent{
		AgentID:          "agent-" + id,
		ServiceAccountID: id,
		State:            directory.AgentStateEnabled,
		LastAccessedAt:   timePtr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Options:          directory.AgentOptions{ClusterName: cluster},
	}
}

func TestPlanExplicitStart(t *testing.T) {
	dir := &fakeDirectory{agents: []directory.Agent{enabledAgent("sa-1", "prod")}}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	plan, err := p.Plan(context.Background(), "2024-01", nil, "")
	require.NoError(t, err)

	require.Len(t, plan.Tasks, 3)
	require.Len(t, plan.Changed, 3)
	for i, month := range []string{"2024-01", "2024-02", "2024-03"} {
		assert.Equal(t, month, plan.Tasks[i].TaskOptions.Start)
		assert.Equal(t, "sa-1", plan.Tasks[i].TaskOptions.ServiceAccountID)
		assert.Equal(t, "prod", plan.Tasks[i].TaskOptions.ClusterName)
		// Task and marker always reference the same account and month.
		assert.Equal(t, month, plan.Changed[i].Start)
		assert.Equal(t, "sa-1", plan.Changed[i].Filter.ServiceAccountID)
	}
}

func TestPlanMalformedStart(t *testing.T) {
	dir := &fakeDirectory{agents: []directory.Agent{enabledAgent("sa-1", "prod")}}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	_, err := p.Plan(context.Background(), "January 2024", nil, "")
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidParameterType(err))
}

func TestPlanLastSynchronizedGuardWindow(t *testing.T) {
	dir := &fakeDirectory{agents: []directory.Agent{enabledAgent("sa-1", "prod")}}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	// March 4th minus the 7-day guard lands in February, so February is
	// re-covered.
	plan, err := p.Plan(context.Background(), "", timePtr(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)), "")
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "2024-02", plan.Tasks[0].TaskOptions.Start)
	assert.Equal(t, "2024-03", plan.Tasks[1].TaskOptions.Start)

	// Mid-month, the guard stays inside the same month.
	plan, err = p.Plan(context.Background(), "", timePtr(time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)), "")
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "2024-03", plan.Tasks[0].TaskOptions.Start)
}

func TestPlanFirstSyncLookback(t *testing.T) {
	dir := &fakeDirectory{agents: []directory.Agent{enabledAgent("sa-1", "prod")}}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	plan, err := p.Plan(context.Background(), "", nil, "")
	require.NoError(t, err)

	// 2024-03-15 minus 365 days is 2023-03-16: thirteen months through
	// the current one.
	require.Len(t, plan.Tasks, 13)
	assert.Equal(t, "2023-03", plan.Tasks[0].TaskOptions.Start)
	assert.Equal(t, "2024-03", plan.Tasks[len(plan.Tasks)-1].TaskOptions.Start)
}

func TestPlanIdempotent(t *testing.T) {
	dir := &fakeDirectory{agents: []directory.Agent{enabledAgent("sa-1", "prod"), enabledAgent("sa-2", "staging")}}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	last := timePtr(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC))

	first, err := p.Plan(context.Background(), "", last, "")
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), "", last, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlanEligibility(t *testing.T) {
	disabled := enabledAgent("sa-off", "dev")
	disabled.State = directory.AgentStateDisabled
	neverSeen := enabledAgent("sa-idle", "dev")
	neverSeen.LastAccessedAt = nil

	dir := &fakeDirectory{agents: []directory.Agent{disabled, neverSeen, enabledAgent("sa-1", "prod")}}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	plan, err := p.Plan(context.Background(), "2024-03", nil, "")
	require.NoError(t, err)

	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "sa-1", plan.Tasks[0].TaskOptions.ServiceAccountID)
}

func TestPlanNoEligibleAgents(t *testing.T) {
	dir := &fakeDirectory{}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	plan, err := p.Plan(context.Background(), "2024-01", nil, "ws-1")
	require.NoError(t, err)

	assert.Empty(t, plan.Tasks)
	assert.NotNil(t, plan.Tasks)
	assert.Empty(t, plan.Changed)
	assert.Equal(t, "ws-1", dir.gotWorkspace)
}

func TestPlanDirectoryError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("registry unavailable")}
	p := newTestPlanner(dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	_, err := p.Plan(context.Background(), "2024-01", nil, "")
	require.Error(t, err)
}
