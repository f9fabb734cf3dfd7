// Package workflow implements action throttling and fire-history auditing
// for triggered condition groups.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/watchtower/internal/metrics"
	"github.com/dwsmith1983/watchtower/internal/store"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// ActionFilter decides which actions attached to triggered condition
// groups are eligible to fire now, based on per-(action, group) last-fired
// timestamps and each owning workflow's configured frequency.
type ActionFilter struct {
	store     store.ThrottleStore
	workflows map[string]types.Workflow // condition group id -> owning workflow
	logger    *slog.Logger
	now       func() time.Time
}

// NewActionFilter builds an ActionFilter over the given workflows.
func NewActionFilter(ts store.ThrottleStore, workflows []types.Workflow, logger *slog.Logger) *ActionFilter {
	if logger == nil {
		logger = slog.Default()
	}
	index := make(map[string]types.Workflow)
	for _, wf := range workflows {
		for _, cg := range wf.ConditionGroups {
			index[cg.ID] = wf
		}
	}
	return &ActionFilter{
		store:     ts,
		workflows: index,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the filter's clock (for tests).
func (f *ActionFilter) SetClock(now func() time.Time) {
	f.now = now
}

type candidate struct {
	action   types.Action
	workflow types.Workflow
}

// FilterRecentlyFiredActions returns the actions eligible to fire now for
// the given triggered condition groups. Fire-history audit rows are marked
// has_passed_filters for every candidate's workflow up front, and
// has_fired_actions for the eligible set's workflows at the end. Actions
// with no prior status row always fire and get a row created; actions with
// a row fire only when strictly more time than the workflow's frequency
// has elapsed, and get their row bumped to now.
func (f *ActionFilter) FilterRecentlyFiredActions(ctx context.Context, groups []types.DataConditionGroup, eventData types.EventData) ([]types.Action, error) {
	candidates := f.collectCandidates(groups)
	if len(candidates) == 0 {
		return nil, nil
	}
	metrics.ActionsFiltered.Add(int64(len(candidates)))

	if err := f.markFireHistories(ctx, candidates, eventData, false); err != nil {
		return nil, err
	}

	actionIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		actionIDs = append(actionIDs, c.action.ID)
	}

	now := f.now()
	statuses, err := f.store.GetActionStatuses(ctx, eventData.GroupID, actionIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching action statuses: %w", err)
	}

	var (
		eligible []candidate
		toCreate []types.ActionGroupStatus
		toTouch  []string
	)
	for _, c := range candidates {
		status, ok := statuses[c.action.ID]
		if !ok {
			// First fire for this (action, group): always eligible.
			eligible = append(eligible, c)
			toCreate = append(toCreate, types.ActionGroupStatus{
				ActionID:    c.action.ID,
				GroupID:     eventData.GroupID,
				DateUpdated: now,
			})
			continue
		}
		// Strictly greater-than: elapsed exactly the frequency is not eligible.
		if now.Sub(status.DateUpdated) > c.workflow.FrequencyMinutes() {
			eligible = append(eligible, c)
			toTouch = append(toTouch, c.action.ID)
		}
	}

	if len(toCreate) > 0 {
		if err := f.store.CreateActionStatuses(ctx, toCreate); err != nil {
			return nil, fmt.Errorf("creating action statuses: %w", err)
		}
	}
	if len(toTouch) > 0 {
		if err := f.store.TouchActionStatuses(ctx, eventData.GroupID, toTouch, now); err != nil {
			return nil, fmt.Errorf("bumping action statuses: %w", err)
		}
	}

	if len(eligible) > 0 {
		if err := f.markFireHistories(ctx, eligible, eventData, true); err != nil {
			return nil, err
		}
	}
	metrics.ActionsEligible.Add(int64(len(eligible)))

	actions := make([]types.Action, 0, len(eligible))
	for _, c := range eligible {
		actions = append(actions, c.action)
	}
	return actions, nil
}

// collectCandidates gathers the distinct actions across the groups along
// with the workflow owning the group each was collected through.
func (f *ActionFilter) collectCandidates(groups []types.DataConditionGroup) []candidate {
	seen := make(map[string]bool)
	var candidates []candidate
	for _, group := range groups {
		wf, ok := f.workflows[group.ID]
		if !ok {
			f.logger.Warn("condition group has no owning workflow", "conditionGroup", group.ID)
			continue
		}
		for _, action := range group.Actions {
			if seen[action.ID] {
				continue
			}
			seen[action.ID] = true
			candidates = append(candidates, candidate{action: action, workflow: wf})
		}
	}
	return candidates
}

// markFireHistories upserts audit rows for the candidates' workflows.
func (f *ActionFilter) markFireHistories(ctx context.Context, candidates []candidate, eventData types.EventData, hasFired bool) error {
	workflowIDs := make(map[string]bool)
	actionIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		workflowIDs[c.workflow.ID] = true
		actionIDs = append(actionIDs, c.action.ID)
	}

	histories := make([]types.WorkflowFireHistory, 0, len(workflowIDs))
	ids := make([]string, 0, len(workflowIDs))
	for id := range workflowIDs {
		ids = append(ids, id)
		histories = append(histories, types.WorkflowFireHistory{
			WorkflowID:       id,
			GroupID:          eventData.GroupID,
			EventID:          eventData.EventID,
			HasPassedFilters: true,
			HasFiredActions:  hasFired,
		})
	}

	f.logger.Info("workflow_fire_history.update",
		"actions", actionIDs,
		"workflowIds", ids,
		"groupId", eventData.GroupID,
		"eventId", eventData.EventID,
		"hasPassedFilters", true,
		"hasFiredActions", hasFired)

	if err := f.store.MarkFireHistories(ctx, histories); err != nil {
		return fmt.Errorf("marking fire histories: %w", err)
	}
	return nil
}
