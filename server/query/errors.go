package query

import "github.com/fairgrounds/deltashare/pkg/errors"

// Planner-specific error codes. All of these are client errors detected
// before any storage call.
var (
	ErrConflictingVersion     = errors.MustNewCode("query.conflicting_version")
	ErrInvalidVersion         = errors.MustNewCode("query.invalid_version")
	ErrVersionNotFound        = errors.MustNewCode("query.version_not_found")
	ErrInvalidTimestamp       = errors.MustNewCode("query.invalid_timestamp")
	ErrTimestampOutOfRange    = errors.MustNewCode("query.timestamp_out_of_range")
	ErrVersionNotMaterialized = errors.MustNewCode("query.version_not_materialized")
)
