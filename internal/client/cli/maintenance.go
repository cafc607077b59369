package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/filex"
)

const defaultLogLines = 20

var errAborted = errors.New("aborted")

// AccessLog prints the newest audit entries:
//
//	log [n]
func (a *App) AccessLog(ctx context.Context, args []string) error {
	n := defaultLogLines
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("%w: bad line count %q", common.ErrorValidation, args[0])
		}
		n = v
	}

	entries, err := a.vault.AccessLog(ctx, a.userID, n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "Access log is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(a.out, formatLogEntry(e))
	}
	return nil
}

// Sweep runs the auto-delete pass now.
func (a *App) Sweep(ctx context.Context) error {
	res, err := a.vault.Sweep(ctx)
	if err != nil {
		return err
	}
	if res.Empty() {
		fmt.Fprintln(a.out, "Nothing to delete")
		return nil
	}
	fmt.Fprintf(a.out, "Deleted %d file(s), removed %d expired share(s)\n", len(res.DeletedFiles), res.ReapedShares)
	return nil
}

// Export writes a snapshot of the vault:
//
//	export <file>      write locally
//	export --upload    upload to the configured bucket
//
// An empty passphrase writes plain JSON.
func (a *App) Export(ctx context.Context, args []string) error {
	upload := len(args) > 0 && args[0] == "--upload"

	dst := ""
	if !upload {
		var err error
		if dst, err = a.argOrPrompt(args, 0, "Enter export file path"); err != nil {
			return err
		}
	}

	pass, err := getPassword(a.out, "Export passphrase (empty for none)")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)

	res, err := a.vault.Export(ctx, a.userID, string(pass), upload)
	if err != nil {
		return err
	}

	if upload {
		fmt.Fprintf(a.out, "Uploaded as %s\n", res.ObjectKey)
		return nil
	}
	if err := filex.WriteFileAtomic(dst, res.Data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d bytes (%s) to %s\n", len(res.Data), res.ContentType, dst)
	return nil
}

// Panic wipes every file, share and log entry after confirmation.
func (a *App) Panic(ctx context.Context) error {
	answer, err := getSimpleText(a.reader, "This deletes everything. Type WIPE to confirm", a.out)
	if err != nil {
		return err
	}
	if answer != "WIPE" {
		return errAborted
	}
	if err := a.vault.Wipe(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault wiped")
	return a.Lock(ctx)
}
