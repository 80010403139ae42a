package config

import "github.com/fairgrounds/deltashare/pkg/errors"

// Config-specific error codes
var (
	ErrConfigFileReadFailed       = errors.MustNewCode("config.file_read_failed")
	ErrConfigFileParseFailed      = errors.MustNewCode("config.file_parse_failed")
	ErrConfigValidationFailed     = errors.MustNewCode("config.validation_failed")
	ErrServerValidationFailed     = errors.MustNewCode("config.server_validation_failed")
	ErrAuthTokenRequired          = errors.MustNewCode("config.auth_token_required")
	ErrCatalogPathRequired        = errors.MustNewCode("config.catalog_path_required")
	ErrStorageValidationFailed    = errors.MustNewCode("config.storage_validation_failed")
	ErrStorageEndpointRequired    = errors.MustNewCode("config.storage_endpoint_required")
	ErrSigningValidationFailed    = errors.MustNewCode("config.signing_validation_failed")
	ErrPaginationValidationFailed = errors.MustNewCode("config.pagination_validation_failed")

	// Logging-specific error codes
	ErrLogDirectoryCreationFailed = errors.MustNewCode("config.log_directory_creation_failed")
	ErrLogFileOpenFailed          = errors.MustNewCode("config.log_file_open_failed")
)
