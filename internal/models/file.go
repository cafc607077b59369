package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MediaType classifies a stored media item.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// ParseMediaType validates s as a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case MediaImage:
		return MediaImage, nil
	case MediaVideo:
		return MediaVideo, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// MediaTypeFromPath guesses the media type from a file extension.
func MediaTypeFromPath(path string) (MediaType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".heic", ".webp", ".bmp":
		return MediaImage, true
	case ".mp4", ".mov", ".m4v", ".avi", ".mkv", ".webm", ".3gp":
		return MediaVideo, true
	default:
		return "", false
	}
}

// SecureFile is one piece of media kept in the secure drive. The record only
// references the (encrypted) bytes through URI.
type SecureFile struct {
	ID                string    `json:"id"`
	URI               string    `json:"uri"`
	Type              MediaType `json:"type"`
	Timestamp         int64     `json:"timestamp"`
	Encrypted         bool      `json:"encrypted"`
	IsReceivedContent bool      `json:"isReceivedContent,omitempty"`

	OwnerID         string `json:"ownerId,omitempty"`
	OriginalOwnerID string `json:"originalOwnerId,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	DurationMs      int64  `json:"durationMs,omitempty"`

	// WrappedKey is the AES-GCM key of the blob at URI sealed to the
	// owner's public key. The plain key is never persisted.
	WrappedKey []byte `json:"wrappedKey,omitempty"`
	Nonce      []byte `json:"nonce,omitempty"`
}

// Shareable reports whether the file may enter the sharing flow.
// Content that arrived through a share never can.
func (f SecureFile) Shareable() bool {
	return !f.IsReceivedContent
}

// Public returns a copy without key material, safe to hand to callers
// outside the drive.
func (f SecureFile) Public() SecureFile {
	f.WrappedKey = nil
	f.Nonce = nil
	return f
}
