package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwsmith1983/watchtower/pkg/types"
)

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name  string
		cond  types.DataCondition
		value float64
		want  bool
	}{
		{"gt above", types.DataCondition{Type: types.ConditionGT, Comparison: 5}, 6, true},
		{"gt equal", types.DataCondition{Type: types.ConditionGT, Comparison: 5}, 5, false},
		{"gte equal", types.DataCondition{Type: types.ConditionGTE, Comparison: 5}, 5, true},
		{"gte below", types.DataCondition{Type: types.ConditionGTE, Comparison: 5}, 4.9, false},
		{"lt below", types.DataCondition{Type: types.ConditionLT, Comparison: 5}, 4, true},
		{"lt equal", types.DataCondition{Type: types.ConditionLT, Comparison: 5}, 5, false},
		{"lte equal", types.DataCondition{Type: types.ConditionLTE, Comparison: 5}, 5, true},
		{"eq match", types.DataCondition{Type: types.ConditionEQ, Comparison: 5}, 5, true},
		{"eq miss", types.DataCondition{Type: types.ConditionEQ, Comparison: 5}, 5.1, false},
		{"unknown operator", types.DataCondition{Type: "between", Comparison: 5}, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateCondition(tt.cond, tt.value))
		})
	}
}

func TestEvaluateConditionGroup_AnyLogic(t *testing.T) {
	group := &types.DataConditionGroup{
		ID: "cg-1",
		Conditions: []types.DataCondition{
			{Type: types.ConditionGT, Comparison: 5, Result: types.PriorityHigh},
			{Type: types.ConditionGT, Comparison: 3, Result: types.PriorityLow},
		},
	}

	matched, priorities := EvaluateConditionGroup(group, 6)
	assert.True(t, matched)
	assert.ElementsMatch(t, []types.PriorityLevel{types.PriorityHigh, types.PriorityLow}, priorities)

	matched, priorities = EvaluateConditionGroup(group, 4)
	assert.True(t, matched)
	assert.Equal(t, []types.PriorityLevel{types.PriorityLow}, priorities)

	matched, _ = EvaluateConditionGroup(group, 2)
	assert.False(t, matched)
}

func TestEvaluateConditionGroup_AllLogic(t *testing.T) {
	group := &types.DataConditionGroup{
		ID:    "cg-1",
		Logic: types.LogicAll,
		Conditions: []types.DataCondition{
			{Type: types.ConditionGT, Comparison: 5, Result: types.PriorityHigh},
			{Type: types.ConditionLT, Comparison: 10, Result: types.PriorityHigh},
		},
	}

	matched, _ := EvaluateConditionGroup(group, 7)
	assert.True(t, matched)

	// Only one of two conditions matches.
	matched, _ = EvaluateConditionGroup(group, 12)
	assert.False(t, matched)
}

func TestEvaluateConditionGroup_Empty(t *testing.T) {
	matched, priorities := EvaluateConditionGroup(nil, 5)
	assert.False(t, matched)
	assert.Nil(t, priorities)

	matched, _ = EvaluateConditionGroup(&types.DataConditionGroup{ID: "cg-1"}, 5)
	assert.False(t, matched)
}
