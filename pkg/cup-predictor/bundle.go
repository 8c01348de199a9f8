package cuppredictor

import (
	"encoding/json"
	"fmt"
)

// BundleVersion is the current model bundle layout version.
const BundleVersion = 1

// ModelBundle is the single atomic unit persisted and restored for both
// interactive prediction and simulation: rating parameters, classifier state
// and ensemble weights together, as plain versioned data.
type ModelBundle struct {
	Version          int             `json:"version"`
	Ratings          RatingParams    `json:"ratings"`
	Classifier       ClassifierState `json:"classifier"`
	RatingWeight     float64         `json:"rating_weight"`
	ClassifierWeight float64         `json:"classifier_weight"`
	ExtraTimeProb    float64         `json:"extra_time_prob"`
	PenaltyEdge      float64         `json:"penalty_edge"`
}

// Bundle snapshots the fitted ensemble. Both sub-models must be fitted.
func (e *Ensemble) Bundle() (*ModelBundle, error) {
	ratingParams, err := e.ratings.RatingParams()
	if err != nil {
		return nil, fmt.Errorf("bundling model: %w", err)
	}
	if e.classifier == nil {
		return nil, fmt.Errorf("bundling model: %w", ErrNotFitted)
	}
	classifierState, err := e.classifier.State()
	if err != nil {
		return nil, fmt.Errorf("bundling model: %w", err)
	}

	return &ModelBundle{
		Version:          BundleVersion,
		Ratings:          *ratingParams,
		Classifier:       *classifierState,
		RatingWeight:     e.wRating,
		ClassifierWeight: e.wClassifier,
		ExtraTimeProb:    e.etProb,
		PenaltyEdge:      e.penEdge,
	}, nil
}

// RestoreEnsemble rebuilds a ready-to-predict ensemble from a bundle.
func RestoreEnsemble(bundle *ModelBundle, params *Params) (*Ensemble, error) {
	if bundle == nil {
		return nil, fmt.Errorf("restoring model: nil bundle")
	}
	if bundle.Version != BundleVersion {
		return nil, fmt.Errorf("restoring model: unsupported bundle version %d", bundle.Version)
	}
	if params == nil {
		params = DefaultParams()
	}

	ratings := newFittedRatingModel(params, &bundle.Ratings)
	classifier := newFittedClassifier(params, &bundle.Classifier)

	e := &Ensemble{
		params:      params,
		ratings:     ratings,
		classifier:  classifier,
		wRating:     bundle.RatingWeight,
		wClassifier: bundle.ClassifierWeight,
		etProb:      bundle.ExtraTimeProb,
		penEdge:     bundle.PenaltyEdge,
	}
	if err := e.SetWeights(bundle.RatingWeight, bundle.ClassifierWeight); err != nil {
		return nil, fmt.Errorf("restoring model: %w", err)
	}
	return e, nil
}

// EncodeBundle serializes a bundle to JSON.
func EncodeBundle(bundle *ModelBundle) ([]byte, error) {
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("encoding model bundle: %w", err)
	}
	return data, nil
}

// DecodeBundle deserializes a bundle and checks its version.
func DecodeBundle(data []byte) (*ModelBundle, error) {
	var bundle ModelBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decoding model bundle: %w", err)
	}
	if bundle.Version != BundleVersion {
		return nil, fmt.Errorf("decoding model bundle: unsupported version %d", bundle.Version)
	}
	return &bundle, nil
}
