package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saveme/internal/sharing"
)

// now is a test seam for the clock used in listings.
var now = time.Now

// Share sends a file to one or more users:
//
//	share <fileId> <user>[,<user>...]
//
// Without recipients on the command line they are read one per line.
func (a *App) Share(ctx context.Context, args []string) error {
	fileID, err := a.argOrPrompt(args, 0, "Enter file id to share")
	if err != nil {
		return err
	}

	var recipients []string
	for _, arg := range args[min(1, len(args)):] {
		recipients = append(recipients, splitList(arg)...)
	}
	if len(recipients) == 0 {
		recipients, err = GetLines(a.reader, "Enter recipient user ids", a.out)
		if err != nil {
			return err
		}
	}
	if len(recipients) == 0 {
		return sharing.ErrNoRecipients
	}

	grants, err := a.vault.Share(ctx, a.userID, fileID, recipients)
	if err != nil {
		return err
	}
	for _, g := range grants {
		fmt.Fprintf(a.out, "Shared with %s  code %s  record %s\n", g.RecipientID, g.ShareCode, g.RecordID)
	}
	return nil
}

// Inbox lists shares received by the current user.
func (a *App) Inbox(ctx context.Context) error {
	items, err := a.vault.Inbox(ctx, a.userID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Inbox is empty")
		return nil
	}
	t := now()
	for _, s := range items {
		fmt.Fprintln(a.out, formatShare(s, "from "+s.FromUserID, t))
	}
	return nil
}

// Sent lists shares the current user created.
func (a *App) Sent(ctx context.Context) error {
	items, err := a.vault.Sent(ctx, a.userID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Nothing shared")
		return nil
	}
	t := now()
	for _, s := range items {
		fmt.Fprintln(a.out, formatShare(s, "to "+s.ToUserID, t))
	}
	return nil
}

// View opens a received share and counts the view:
//
//	view <recordId> [dst]
func (a *App) View(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, 0, "Enter share record id")
	if err != nil {
		return err
	}
	dst, err := outputPath(args, 1, "received", id)
	if err != nil {
		return err
	}

	rec, err := a.vault.View(ctx, a.userID, id, dst)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "File saved to: %s\n", dst)
	if r := rec.RemainingViews(); r >= 0 {
		fmt.Fprintf(a.out, "%d view(s) left, %s\n", r, formatRemaining(rec.ExpiresAt, now()))
	}
	return nil
}

// Unshare removes a received share from the inbox:
//
//	unshare <recordId>
func (a *App) Unshare(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, 0, "Enter share record id to remove")
	if err != nil {
		return err
	}
	if err := a.vault.DeleteShare(ctx, a.userID, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Removed")
	return nil
}
