package services

import (
	"time"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/autodelete"
	"github.com/dmitrijs2005/saveme/internal/session"
	"github.com/dmitrijs2005/saveme/internal/sharing"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

// Policy holds the retention and access knobs of a vault.
type Policy struct {
	ShareTTL          timex.Duration `json:"share_ttl"`
	AutoDeleteAfter   timex.Duration `json:"auto_delete_after"`
	MaxViews          int            `json:"max_views"`
	LogCapacity       int            `json:"log_capacity"`
	SessionTimeout    timex.Duration `json:"session_timeout"`
	ReapExpiredShares bool           `json:"reap_expired_shares"`
	DeviceInfo        string         `json:"device_info"`
}

func DefaultPolicy() Policy {
	return Policy{
		ShareTTL:          timex.Duration{Duration: sharing.DefaultTTL},
		AutoDeleteAfter:   timex.Duration{Duration: autodelete.DefaultDelay},
		MaxViews:          sharing.DefaultMaxViews,
		LogCapacity:       accesslog.DefaultCapacity,
		SessionTimeout:    timex.Duration{Duration: session.DefaultTimeout},
		ReapExpiredShares: true,
		DeviceInfo:        accesslog.DefaultDeviceInfo(),
	}
}

func (p Policy) autoDelete() time.Duration {
	if p.AutoDeleteAfter.Duration <= 0 {
		return autodelete.DefaultDelay
	}
	return p.AutoDeleteAfter.Duration
}
