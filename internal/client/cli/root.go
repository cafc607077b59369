package cli

import (
	"context"
	"fmt"
	"log"
	"strings"
)

func (a *App) getStatus() string {
	var parts []string
	if a.userID != "" {
		parts = append(parts, a.userID)
	}
	if !a.unlocked && a.userID != "" {
		parts = append(parts, "locked")
	}
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

// Root sweeps once, offers to unlock the configured user and runs the REPL
// until the user exits.
func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to saveme (type 'help' for commands)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	if a.mode() == ModeLocal {
		if res, err := a.vault.Sweep(ctx); err != nil {
			a.logger.Warn(ctx, "startup sweep failed", "error", err)
		} else if !res.Empty() {
			fmt.Fprintf(a.out, "Auto-deleted %d file(s)\n", len(res.DeletedFiles))
		}
	}

	if a.userID != "" {
		if err := a.Unlock(ctx, nil); err != nil {
			fmt.Fprintln(a.out, "Error:", err)
		}
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
