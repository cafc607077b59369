package cli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

const timeLayout = "2006-01-02 15:04"

func formatFile(f models.SecureFile) string {
	s := fmt.Sprintf("%s  %-5s  %s", f.ID, f.Type, timex.FromMillis(f.Timestamp).Local().Format(timeLayout))
	if f.IsReceivedContent {
		s += "  received from " + f.OriginalOwnerID
	}
	return s
}

// formatRemaining renders time left until expiresAt.
func formatRemaining(expiresAt int64, now time.Time) string {
	if expiresAt == 0 {
		return "no expiry"
	}
	left := timex.FromMillis(expiresAt).Sub(now)
	if left <= 0 {
		return "expired"
	}
	if left < time.Minute {
		return "expires in <1m"
	}
	return "expires in " + left.Truncate(time.Minute).String()
}

func formatViews(s models.SharedContent) string {
	if r := s.RemainingViews(); r >= 0 {
		return fmt.Sprintf("%d/%d views", s.ViewCount, s.MaxViews)
	}
	return fmt.Sprintf("%d views", s.ViewCount)
}

func formatShare(s models.SharedContent, peer string, now time.Time) string {
	return fmt.Sprintf("%s  %-5s  %s  code %s  %s  %s",
		s.ID, s.FileType, peer, s.ShareCode, formatViews(s), formatRemaining(s.ExpiresAt, now))
}

func formatLogEntry(e models.AccessLogEntry) string {
	s := fmt.Sprintf("%s  %-15s  %s", timex.FromMillis(e.Timestamp).Local().Format(timeLayout), e.Type, e.Details)
	if e.UserID != "" {
		s += "  user=" + e.UserID
	}
	if e.DeviceInfo != "" {
		s += "  [" + e.DeviceInfo + "]"
	}
	return s
}
