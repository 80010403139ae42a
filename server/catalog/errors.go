package catalog

import "github.com/fairgrounds/deltashare/pkg/errors"

// Catalog-specific error codes
var (
	ErrShareNotFound  = errors.MustNewCode("catalog.share_not_found")
	ErrSchemaNotFound = errors.MustNewCode("catalog.schema_not_found")
	ErrTableNotFound  = errors.MustNewCode("catalog.table_not_found")

	ErrCatalogReadFailed  = errors.MustNewCode("catalog.read_failed")
	ErrCatalogParseFailed = errors.MustNewCode("catalog.parse_failed")
	ErrCatalogInvalid     = errors.MustNewCode("catalog.invalid")
)
