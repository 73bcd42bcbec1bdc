// Package job plans the monthly synchronization work: which billing
// months to (re-)pull for which accounts, and which already-ingested
// periods the platform must re-evaluate.
package job

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/finopshq/mimir-cost-datasource/internal/billing"
	"github.com/finopshq/mimir-cost-datasource/internal/directory"
)

const (
	// resyncGuard re-covers a trailing week of an already-synchronized
	// period so late-arriving metrics are picked up.
	resyncGuard = 7 * 24 * time.Hour

	// firstSyncLookback bounds how far back the very first
	// synchronization reaches.
	firstSyncLookback = 365 * 24 * time.Hour
)

// TaskOptions parameterizes one unit of synchronization work.
type TaskOptions struct {
	Start            string `json:"start"`
	ServiceAccountID string `json:"service_account_id"`
	ClusterName      string `json:"cluster_name,omitempty"`
}

// Task is one (account, month) synchronization unit, executed later and
// independently by the cost pipeline.
type Task struct {
	TaskOptions TaskOptions `json:"task_options"`
}

// ChangeFilter scopes a change marker to one account.
type ChangeFilter struct {
	ServiceAccountID string `json:"service_account_id"`
}

// ChangeMarker tells the platform to re-evaluate an already-ingested
// period for one account. Every task is paired with one marker for the
// same account and month.
type ChangeMarker struct {
	Start  string       `json:"start"`
	Filter ChangeFilter `json:"filter"`
}

// TaskList is the planner's result contract.
type TaskList struct {
	Tasks   []Task         `json:"tasks"`
	Changed []ChangeMarker `json:"changed"`
}

// AccountDirectory is the registry collaborator the planner reads
// agents from.
type AccountDirectory interface {
	ListAgents(ctx context.Context, workspaceID string) (*directory.AgentList, error)
}

// Planner computes the task list for one synchronization cycle.
type Planner struct {
	directory AccountDirectory
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPlanner wires a planner to the account registry.
func NewPlanner(dir AccountDirectory, logger zerolog.Logger) *Planner {
	return &Planner{directory: dir, logger: logger, now: time.Now}
}

// Plan enumerates every calendar month from the resolved start month
// through the current month and emits one task plus one change marker
// per eligible agent and month. No eligible agents means an empty plan,
// not an error.
func (p *Planner) Plan(ctx context.Context, start string, lastSynchronizedAt *time.Time, workspaceID string) (*TaskList, error) {
	startMonth, err := p.resolveStartMonth(start, lastSynchronizedAt)
	if err != nil {
		return nil, err
	}

	list, err := p.directory.ListAgents(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	eligible := lo.Filter(list.Results, func(a directory.Agent, _ int) bool {
		return a.State == directory.AgentStateEnabled && a.LastAccessedAt != nil
	})

	plan := &TaskList{Tasks: []Task{}, Changed: []ChangeMarker{}}
	current := billing.MonthOf(p.now())
	for _, agent := range eligible {
		for m := startMonth; !m.After(current); m = m.Next() {
			plan.Tasks = append(plan.Tasks, Task{TaskOptions: TaskOptions{
				Start:            m.String(),
				ServiceAccountID: agent.ServiceAccountID,
				ClusterName:      agent.Options.ClusterName,
			}})
			plan.Changed = append(plan.Changed, ChangeMarker{
				Start:  m.String(),
				Filter: ChangeFilter{ServiceAccountID: agent.ServiceAccountID},
			})
		}
	}

	p.logger.Info().
		Str("operation", "Job.get_tasks").
		Str("start_month", startMonth.String()).
		Int("agents_total", list.TotalCount).
		Int("agents_eligible", len(eligible)).
		Int("tasks", len(plan.Tasks)).
		Msg("synchronization plan computed")

	return plan, nil
}

// resolveStartMonth picks the first month to synchronize: an explicit
// start wins, then the last successful run minus the guard window, then
// the first-sync lookback.
func (p *Planner) resolveStartMonth(start string, lastSynchronizedAt *time.Time) (billing.Month, error) {
	if start != "" {
		return billing.ParseMonth(start)
	}
	if lastSynchronizedAt != nil {
		return billing.MonthOf(lastSynchronizedAt.Add(-resyncGuard)), nil
	}
	return billing.MonthOf(p.now().Add(-firstSyncLookback)), nil
}
