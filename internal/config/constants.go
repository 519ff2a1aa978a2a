package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Attachment downloads
const (
	AttachmentDownloadTimeout = 60 * time.Second
	MaxAttachmentBytes        = 25 << 20
)

// Default trigger phrases that start a new intake dialogue
var DefaultTriggerPhrases = []string{
	"make a maintenance request",
	"make maintenance request",
	"new maintenance request",
	"new request",
}
