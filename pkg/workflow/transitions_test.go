package workflow

import (
	"testing"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominalTarget(t *testing.T) {
	tests := []struct {
		state  models.WorkflowState
		action Action
		want   models.WorkflowState
		ok     bool
	}{
		{models.StateDraft, ActionSetDesign, models.StateDraft, true},
		{models.StateDraft, ActionSetContext, models.StateContextReady, true},
		{models.StateDraft, ActionApprove, "", false},
		{models.StateContextReady, ActionRequestFeasibility, models.StateFeasibilityRequested, true},
		{models.StateFeasibilityRequested, ActionStoreFeasibility, models.StateFeasibilityReady, true},
		{models.StateFeasibilityRequested, ActionSetDesign, "", false},
		{models.StateFeasibilityReady, ActionApprove, models.StateApproved, true},
		{models.StateFeasibilityReady, ActionRequireRevision, models.StateDesignRevisionRequired, true},
		{models.StateApproved, ActionRequestToolpaths, models.StateToolpathsRequested, true},
		{models.StateToolpathsRequested, ActionStoreToolpaths, models.StateToolpathsReady, true},
		{models.StateToolpathsRequested, ActionSetContext, "", false},
		{models.StateRejected, ActionArchive, models.StateArchived, true},
		{models.StateRejected, ActionSetDesign, "", false},
		{models.StateArchived, ActionArchive, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state)+"/"+string(tt.action), func(t *testing.T) {
			got, ok := NominalTarget(tt.state, tt.action)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestOverrideRules_Enumerated(t *testing.T) {
	rules := Overrides()
	require.Len(t, rules, 2)

	names := []string{rules[0].Name, rules[1].Name}
	assert.Contains(t, names, "revision_keeps_context")
	assert.Contains(t, names, "red_hard_stop")
}

func TestResolveTarget_RevisionKeepsContext(t *testing.T) {
	session := testutil.CreateTestSession(
		testutil.WithState(models.StateDesignRevisionRequired),
		testutil.WithContext(models.Document{"material": "al-6061"}),
	)

	target, rule := resolveTarget(ActionSetDesign, models.StateDraft, overrideContext{session: session})
	require.NotNil(t, rule)
	assert.Equal(t, "revision_keeps_context", rule.Name)
	assert.Equal(t, models.StateContextReady, target)
}

func TestResolveTarget_RedHardStop(t *testing.T) {
	session := testutil.CreateTestSession(testutil.WithState(models.StateFeasibilityRequested))
	red := testutil.CreateTestFeasibility(models.RiskRed, 30)

	target, rule := resolveTarget(ActionStoreFeasibility, models.StateFeasibilityReady,
		overrideContext{session: session, result: red})
	require.NotNil(t, rule)
	assert.Equal(t, "red_hard_stop", rule.Name)
	assert.Equal(t, models.StateRejected, target)
}

func TestResolveTarget_RedWithOverrideAllowed(t *testing.T) {
	policy := models.DefaultGovernancePolicy()
	policy.AllowRedOverride = true
	session := testutil.CreateTestSession(
		testutil.WithState(models.StateFeasibilityRequested),
		testutil.WithGovernance(policy),
	)
	red := testutil.CreateTestFeasibility(models.RiskRed, 30)

	target, rule := resolveTarget(ActionStoreFeasibility, models.StateFeasibilityReady,
		overrideContext{session: session, result: red})
	assert.Nil(t, rule)
	assert.Equal(t, models.StateFeasibilityReady, target)
}

func TestResolveTarget_NominalWhenNoRuleMatches(t *testing.T) {
	session := testutil.CreateTestSession(testutil.WithState(models.StateDraft))

	target, rule := resolveTarget(ActionSetDesign, models.StateDraft, overrideContext{session: session})
	assert.Nil(t, rule)
	assert.Equal(t, models.StateDraft, target)
}

func TestLegalActions(t *testing.T) {
	draft := LegalActions(models.StateDraft)
	assert.ElementsMatch(t, []Action{
		ActionSetDesign, ActionSetContext, ActionBumpAttempt, ActionReject, ActionArchive,
	}, draft)

	assert.Empty(t, LegalActions(models.StateArchived))
}
