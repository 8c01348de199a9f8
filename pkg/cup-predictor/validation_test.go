package cuppredictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGroupDrawAcceptsCleanDraw(t *testing.T) {
	draw := GroupDraw{
		"A": {"Arsenal", "Bayern", "TBD"},
		"B": {"Celtic", "Dinamo", ""},
	}
	assert.NoError(t, ValidateGroupDraw(draw))
	assert.NoError(t, ValidateGroupDraw(nil))
}

func TestValidateGroupDrawDuplicateWithinGroup(t *testing.T) {
	err := ValidateGroupDraw(GroupDraw{"A": {"Arsenal", "Arsenal"}})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs.Errors, 1)
	assert.Contains(t, verrs.Errors[0].Message, "listed twice")
}

func TestValidateGroupDrawTeamInTwoGroups(t *testing.T) {
	err := ValidateGroupDraw(GroupDraw{
		"A": {"Arsenal", "Bayern"},
		"B": {"Arsenal", "Celtic"},
	})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Error(), "already drawn")
}

func TestValidateGroupDrawEmptyGroup(t *testing.T) {
	err := ValidateGroupDraw(GroupDraw{"A": {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no teams")
}

func TestValidationErrorsFormatting(t *testing.T) {
	empty := ValidationErrors{}
	assert.Equal(t, "no validation errors", empty.Error())

	one := ValidationError{Field: "groups[A]", Message: "bad"}
	assert.Contains(t, one.Error(), "groups[A]")
}

func TestValidateRequest(t *testing.T) {
	valid := Request{
		Matches: fixtureMatches(),
		Groups:  GroupDraw{"A": {"Arsenal", "Bayern"}},
	}
	assert.NoError(t, validateRequest(valid))

	noMatches := valid
	noMatches.Matches = nil
	assert.ErrorIs(t, validateRequest(noMatches), ErrNoTrainingData)

	noGroups := valid
	noGroups.Groups = nil
	assert.Error(t, validateRequest(noGroups))

	badWeights := valid
	params := DefaultParams()
	params.RatingWeight = 0.9
	params.ClassifierWeight = 0.9
	badWeights.Params = params
	assert.Error(t, validateRequest(badWeights))

	badReps := valid
	params2 := DefaultParams()
	params2.Replications = -1
	badReps.Params = params2
	assert.Error(t, validateRequest(badReps))

	badGoals := valid
	params3 := DefaultParams()
	params3.MaxGoals = 0
	badGoals.Params = params3
	assert.Error(t, validateRequest(badGoals))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, isPlaceholder(""))
	assert.True(t, isPlaceholder("  "))
	assert.True(t, isPlaceholder("TBD"))
	assert.True(t, isPlaceholder("tbc"))
	assert.False(t, isPlaceholder("Arsenal"))
}
