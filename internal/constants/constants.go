package constants

import "time"

// Attribution recorded on every note. There is no multi-user identity in
// this system.
const SystemUser = "system"

// Pagination defaults and bounds
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Rate limiting defaults for note creation
const (
	DefaultRateLimit       = 5
	DefaultRateLimitWindow = 60 * time.Second
)

// Search scoring weights
const (
	TitleMatchScore   = 3
	ContentMatchScore = 2
)

// Search cache entry bound. Zero means unbounded.
const DefaultCacheMaxEntries = 1024

// File permissions
const (
	ConfigFileMode = 0600 // Secure file permissions for config
)
