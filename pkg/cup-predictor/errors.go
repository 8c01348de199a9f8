package cuppredictor

import "errors"

var (
	// ErrNotFitted is returned when a prediction is requested before Fit.
	ErrNotFitted = errors.New("model is not fitted")

	// ErrNoTrainingData is returned when no usable rows remain after filtering.
	ErrNoTrainingData = errors.New("no usable training data")
)
