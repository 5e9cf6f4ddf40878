package services

import "errors"

var (
	// ErrValidation covers invalid caller input; the only category surfaced
	// to API clients as a rejection.
	ErrValidation = errors.New("validation error")

	// ErrNotFound covers missing or unowned records.
	ErrNotFound = errors.New("not found")

	// ErrAnalysisMalformed means the external model's output was unusable
	// (after the strict retry). Meal logging absorbs it as a degraded record.
	ErrAnalysisMalformed = errors.New("analysis output malformed")

	// ErrAnalysisUnavailable means the external call itself failed or timed
	// out (after the strict retry). Also absorbed as a degraded record.
	ErrAnalysisUnavailable = errors.New("analysis unavailable")

	// ErrConcurrencyConflict is returned when an optimistic gamification
	// write exhausts its retries; callers treat it as internal.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
