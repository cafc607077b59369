package models

import "time"

// SharedContent is one directed share of a file from a sender to a single
// recipient, gated by expiry and a view ceiling.
type SharedContent struct {
	ID       string    `json:"id"`
	FileID   string    `json:"fileId"`
	FileURI  string    `json:"fileUri"`
	FileType MediaType `json:"fileType"`

	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`

	SharedAt  int64 `json:"sharedAt"`
	ExpiresAt int64 `json:"expiresAt,omitempty"`
	ViewCount int   `json:"viewCount"`
	MaxViews  int   `json:"maxViews,omitempty"`

	ShareCode string `json:"shareCode"`
	// OTPUsed is persisted for compatibility; no read path consults it.
	OTPUsed bool `json:"otpUsed"`

	IsReceivedContent bool   `json:"isReceivedContent"`
	OriginalOwnerID   string `json:"originalOwnerId,omitempty"`

	// WrappedKey is the file key sealed to the recipient.
	WrappedKey []byte `json:"wrappedKey,omitempty"`
}

// Expired reports whether the record is past its expiry at now.
// A zero ExpiresAt never expires.
func (s SharedContent) Expired(now time.Time) bool {
	return s.ExpiresAt != 0 && now.UnixMilli() >= s.ExpiresAt
}

// ViewLimitReached reports whether the view ceiling is used up.
// A zero MaxViews is unlimited.
func (s SharedContent) ViewLimitReached() bool {
	return s.MaxViews != 0 && s.ViewCount >= s.MaxViews
}

// RemainingViews returns -1 for unlimited records.
func (s SharedContent) RemainingViews() int {
	if s.MaxViews == 0 {
		return -1
	}
	if r := s.MaxViews - s.ViewCount; r > 0 {
		return r
	}
	return 0
}
