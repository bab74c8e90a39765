package portal

import "errors"

// Failure classes recognised across the pipeline. All but ErrCorruptDataset are
// recoverable and never abort a batch.
var (
	ErrFetchFailure            = errors.New("fetch failure")
	ErrParseFailure            = errors.New("parse failure")
	ErrClassificationAmbiguous = errors.New("classification ambiguous")
	ErrDuplicateConflict       = errors.New("duplicate conflict")
	ErrVerifierFailure         = errors.New("external verifier failure")
	ErrCorruptDataset          = errors.New("corrupt dataset")
)
