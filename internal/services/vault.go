// Package services exposes the vault as one facade used by the CLI and the
// daemon.
//
// LocalVault runs every operation against a local store. The gRPC client in
// internal/client/client implements the same Vault interface remotely, so
// the CLI works the same way in both modes.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/saveme/internal/autodelete"
	"github.com/dmitrijs2005/saveme/internal/drive"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/sharing"
)

var ErrUploadDisabled = errors.New("export upload is not configured")

// ExportResult is a finished export. ObjectKey is set when it was uploaded.
type ExportResult struct {
	Data        []byte
	ContentType string
	ObjectKey   string
}

// Vault is the full operation set of the application.
type Vault interface {
	Setup(ctx context.Context, userID, passcode string) error
	// Unlock verifies the passcode and runs a sweep.
	Unlock(ctx context.Context, userID, passcode string) error
	Lock(ctx context.Context, userID string) error
	// SessionExpired reports an idle timeout; otherwise it records activity.
	SessionExpired(ctx context.Context, userID string) (bool, error)

	AddFile(ctx context.Context, nf drive.NewFile) (*models.SecureFile, error)
	ListFiles(ctx context.Context, userID string) ([]models.SecureFile, error)
	DeleteFile(ctx context.Context, userID, fileID string) error
	RevealFile(ctx context.Context, userID, fileID, dst string) error

	Share(ctx context.Context, userID, fileID string, recipients []string) ([]sharing.Grant, error)
	Inbox(ctx context.Context, userID string) ([]models.SharedContent, error)
	Sent(ctx context.Context, userID string) ([]models.SharedContent, error)
	View(ctx context.Context, userID, recordID, dst string) (*models.SharedContent, error)
	DeleteShare(ctx context.Context, userID, recordID string) error

	AccessLog(ctx context.Context, userID string, limit int) ([]models.AccessLogEntry, error)
	Sweep(ctx context.Context) (*autodelete.Result, error)
	Wipe(ctx context.Context) error
	Export(ctx context.Context, userID, passphrase string, upload bool) (*ExportResult, error)

	Close() error
}
