package config

// Network constants
const (
	// Default bind address for the sharing server
	DEFAULT_SERVER_ADDRESS = "0.0.0.0"

	// Default HTTP port, matching the original fairgrounds deployment
	DEFAULT_SERVER_PORT = 8080
)

// Port validation constants
const (
	MIN_PORT = 1
	MAX_PORT = 65535
)

// Pagination defaults
const (
	DEFAULT_MAX_RESULTS       = 100
	MAX_MAX_RESULTS           = 500
	DEFAULT_TOKEN_TTL_SECONDS = 600
)

// Signing defaults
const (
	// One hour, the expiry the original server attached to presigned URLs
	DEFAULT_URL_TTL_SECONDS = 3600

	DEFAULT_SIGNING_PARALLELISM = 4
)

// Storage backend defaults
const (
	DEFAULT_STORAGE_TIMEOUT_SECONDS = 10
	DEFAULT_STORAGE_MAX_RETRIES     = 3
)

// IsValidPort checks if a port number is within valid range
func IsValidPort(port int) bool {
	return port >= MIN_PORT && port <= MAX_PORT
}
