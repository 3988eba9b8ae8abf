package formula

import "errors"

var (
	// Extraction errors
	ErrNoFormulas  = errors.New("template row has no formulas to generalize")
	ErrRowNotFound = errors.New("template row is outside the sheet's used range")

	// Structural application errors (fail the whole apply call)
	ErrEmptyTemplate       = errors.New("template has no formulas")
	ErrRowRangeInvalid     = errors.New("invalid row range")
	ErrRowRangeOutOfBounds = errors.New("row range outside sheet bounds")
	ErrSheetMismatch       = errors.New("row range names a different sheet")

	// Store errors
	ErrTemplateNotFound = errors.New("template not found in store")
)
