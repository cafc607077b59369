// Package models defines the vault records persisted as JSON collections in
// the local record store. Field names and epoch-millisecond timestamps follow
// the persisted layout, so documents written by older clients decode as is.
package models

// Collection keys of the local record store.
const (
	KeySecureFiles      = "secure_files"
	KeySharedContent    = "shared_content"
	KeyScheduledDeletes = "scheduled_deletes"
	KeyAccessLogs       = "access_logs"
)
