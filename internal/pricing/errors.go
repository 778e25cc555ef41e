package pricing

import "errors"

var (
	// ErrDataUnavailable means the requested product slice has no rows.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientVariation means a regression over the rows is undefined,
	// e.g. fewer than two distinct prices.
	ErrInsufficientVariation = errors.New("insufficient price variation")
	ErrMissingModel          = errors.New("missing demand model")
	ErrModelPrediction       = errors.New("model prediction failed")
)
