package detector

import "github.com/dwsmith1983/watchtower/pkg/types"

// evaluateCondition reports whether a single condition matches the value.
func evaluateCondition(cond types.DataCondition, value float64) bool {
	switch cond.Type {
	case types.ConditionGT:
		return value > cond.Comparison
	case types.ConditionGTE:
		return value >= cond.Comparison
	case types.ConditionLT:
		return value < cond.Comparison
	case types.ConditionLTE:
		return value <= cond.Comparison
	case types.ConditionEQ:
		return value == cond.Comparison
	}
	return false
}

// EvaluateConditionGroup evaluates a value against a condition group.
// It returns whether the group's logic is satisfied and the priorities
// contributed by matched conditions. Logic defaults to "any".
func EvaluateConditionGroup(group *types.DataConditionGroup, value float64) (bool, []types.PriorityLevel) {
	if group == nil || len(group.Conditions) == 0 {
		return false, nil
	}

	var matched []types.PriorityLevel
	for _, cond := range group.Conditions {
		if evaluateCondition(cond, value) {
			matched = append(matched, cond.Result)
		}
	}

	if group.Logic == types.LogicAll {
		return len(matched) == len(group.Conditions), matched
	}
	return len(matched) > 0, matched
}
