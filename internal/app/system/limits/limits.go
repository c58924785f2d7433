// internal/app/system/limits/limits.go
package limits

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBodySize is the maximum size for JSON request bodies.
	// The largest legitimate payload is an event create with a long
	// invite list, which stays far under this.
	MaxJSONBodySize = 1 << 20 // 1 MB
)
