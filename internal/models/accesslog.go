package models

// AccessType is the kind of an audited event.
type AccessType string

const (
	AccessLogin          AccessType = "login"
	AccessFileView       AccessType = "file_view"
	AccessFileShare      AccessType = "file_share"
	AccessFileDelete     AccessType = "file_delete"
	AccessFailedAuth     AccessType = "failed_auth"
	AccessSessionTimeout AccessType = "session_timeout"
)

// Label is the human readable name shown by the access log listing.
func (t AccessType) Label() string {
	switch t {
	case AccessLogin:
		return "Login"
	case AccessFileView:
		return "File Viewed"
	case AccessFileShare:
		return "File Shared"
	case AccessFileDelete:
		return "File Deleted"
	case AccessFailedAuth:
		return "Failed Auth"
	case AccessSessionTimeout:
		return "Session Timeout"
	default:
		return "Activity"
	}
}

// AccessLogEntry is one append-only audit record.
type AccessLogEntry struct {
	ID         string     `json:"id"`
	Type       AccessType `json:"type"`
	Timestamp  int64      `json:"timestamp"`
	Details    string     `json:"details"`
	UserID     string     `json:"userId,omitempty"`
	FileID     string     `json:"fileId,omitempty"`
	DeviceInfo string     `json:"deviceInfo,omitempty"`
}
