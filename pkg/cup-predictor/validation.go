package cuppredictor

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidateGroupDraw checks a draw for structural problems: empty groups, a
// team listed twice within a group, or a team appearing in two groups.
// Placeholder entries are legal and skipped.
func ValidateGroupDraw(groups GroupDraw) error {
	var errors []ValidationError

	if len(groups) == 0 {
		return nil
	}

	seen := make(map[string]string) // team -> group it first appeared in
	for label, teams := range groups {
		if len(teams) == 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("groups[%s]", label),
				Message: "group has no teams",
			})
			continue
		}

		inGroup := make(map[string]bool)
		for i, team := range teams {
			if isPlaceholder(team) {
				continue
			}
			if inGroup[team] {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("groups[%s][%d]", label, i),
					Message: fmt.Sprintf("team '%s' listed twice in group '%s'", team, label),
				})
				continue
			}
			inGroup[team] = true

			if other, ok := seen[team]; ok && other != label {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("groups[%s][%d]", label, i),
					Message: fmt.Sprintf("team '%s' already drawn into group '%s'", team, other),
				})
				continue
			}
			seen[team] = label
		}
	}

	if len(errors) > 0 {
		return ValidationErrors{Errors: errors}
	}
	return nil
}

// validateRequest checks a run request for common issues before any fitting
// starts.
func validateRequest(request Request) error {
	if len(request.Matches) == 0 {
		return fmt.Errorf("historical matches are required: %w", ErrNoTrainingData)
	}

	if len(request.Groups) == 0 {
		return fmt.Errorf("group draw is required")
	}

	if err := ValidateGroupDraw(request.Groups); err != nil {
		return err
	}

	if request.Params != nil {
		p := request.Params
		if p.RatingWeight+p.ClassifierWeight != 0 {
			if diff := p.RatingWeight + p.ClassifierWeight - 1.0; diff > 1e-9 || diff < -1e-9 {
				return fmt.Errorf("ensemble weights must sum to 1.0, got %.4f", p.RatingWeight+p.ClassifierWeight)
			}
		}
		if p.Replications < 0 {
			return fmt.Errorf("replications must be non-negative, got %d", p.Replications)
		}
		if p.MaxGoals < 1 {
			return fmt.Errorf("max goals must be at least 1, got %d", p.MaxGoals)
		}
	}

	return nil
}
