// Package proto defines the wire contract of the saveme.Vault gRPC service.
//
// There is no protoc step: every RPC takes and returns a
// google.protobuf.Struct whose fields mirror the JSON encoding of the message
// types below. Encode and Decode convert between the two.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/saveme/internal/autodelete"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/sharing"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "saveme.Vault"

// MaxMessageSize bounds one request or response. Media travels inline.
const MaxMessageSize = 64 << 20

const (
	MethodPing           = "Ping"
	MethodRegister       = "Register"
	MethodLogin          = "Login"
	MethodLock           = "Lock"
	MethodSessionExpired = "SessionExpired"
	MethodAddFile        = "AddFile"
	MethodListFiles      = "ListFiles"
	MethodDeleteFile     = "DeleteFile"
	MethodRevealFile     = "RevealFile"
	MethodShare          = "Share"
	MethodInbox          = "Inbox"
	MethodSent           = "Sent"
	MethodView           = "View"
	MethodDeleteShare    = "DeleteShare"
	MethodAccessLog      = "AccessLog"
	MethodSweep          = "Sweep"
	MethodWipe           = "Wipe"
	MethodExport         = "Export"
)

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PublicMethods need no access token.
var PublicMethods = map[string]bool{
	FullMethod(MethodPing):     true,
	FullMethod(MethodRegister): true,
	FullMethod(MethodLogin):    true,
}

// Encode converts a message to a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	if v == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// Decode fills v from s.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// Credentials is the Register and Login request.
type Credentials struct {
	UserID   string `json:"userId"`
	Passcode string `json:"passcode"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

// UserRequest is used by calls that only name the caller. UserID may be
// left empty; when set it must match the token.
type UserRequest struct {
	UserID string `json:"userId,omitempty"`
}

type SessionResponse struct {
	Expired bool `json:"expired"`
}

type AddFileRequest struct {
	UserID          string           `json:"userId,omitempty"`
	Name            string           `json:"name"`
	Content         []byte           `json:"content"`
	Type            models.MediaType `json:"type,omitempty"`
	Width           int              `json:"width,omitempty"`
	Height          int              `json:"height,omitempty"`
	DurationMs      int64            `json:"durationMs,omitempty"`
	Received        bool             `json:"received,omitempty"`
	OriginalOwnerID string           `json:"originalOwnerId,omitempty"`
}

type FileRequest struct {
	UserID string `json:"userId,omitempty"`
	FileID string `json:"fileId"`
}

type FilesResponse struct {
	Items []models.SecureFile `json:"items"`
}

type ContentResponse struct {
	Content []byte `json:"content"`
}

type ShareRequest struct {
	UserID     string   `json:"userId,omitempty"`
	FileID     string   `json:"fileId"`
	Recipients []string `json:"recipients"`
}

type ShareResponse struct {
	Grants []sharing.Grant `json:"grants"`
}

type SharesResponse struct {
	Items []models.SharedContent `json:"items"`
}

type ViewRequest struct {
	UserID      string `json:"userId,omitempty"`
	RecordID    string `json:"recordId"`
	WithContent bool   `json:"withContent,omitempty"`
}

type ViewResponse struct {
	Record  models.SharedContent `json:"record"`
	Content []byte               `json:"content,omitempty"`
}

type RecordRequest struct {
	UserID   string `json:"userId,omitempty"`
	RecordID string `json:"recordId"`
}

type AccessLogRequest struct {
	UserID string `json:"userId,omitempty"`
	Limit  int    `json:"limit"`
}

type AccessLogResponse struct {
	Items []models.AccessLogEntry `json:"items"`
}

type SweepResponse = autodelete.Result

type ExportRequest struct {
	UserID     string `json:"userId,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	Upload     bool   `json:"upload,omitempty"`
}

type ExportResponse struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
	ObjectKey   string `json:"objectKey,omitempty"`
}
