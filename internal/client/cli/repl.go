package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	expireIfIdle(ctx context.Context) bool

	Setup(ctx context.Context, args []string) error
	Unlock(ctx context.Context, args []string) error
	Lock(ctx context.Context) error

	Capture(ctx context.Context, args []string) error
	Files(ctx context.Context) error
	Reveal(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error

	Share(ctx context.Context, args []string) error
	Inbox(ctx context.Context) error
	Sent(ctx context.Context) error
	View(ctx context.Context, args []string) error
	Unshare(ctx context.Context, args []string) error

	AccessLog(ctx context.Context, args []string) error
	Sweep(ctx context.Context) error
	Export(ctx context.Context, args []string) error
	Panic(ctx context.Context) error
}

// commands that work without an unlocked session
var publicCommands = map[string]bool{
	"help": true, "setup": true, "unlock": true, "exit": true, "quit": true,
}

// runREPL starts a read–eval–print loop.
//
// It reads a line, parses the first token as the command and dispatches to
// a. The loop exits on EOF or on "exit" / "quit".
//
//	Locked:
//	  help, setup [user], unlock [user], exit
//
//	Unlocked:
//	  capture|import <path> [image|video]   add media to the secure drive
//	  files                                 list the drive
//	  reveal <id> [dst]                     decrypt a file
//	  rm <id>                               delete a file
//	  share <id> <user>[,<user>...]         share a file
//	  inbox / sent                          list received / sent shares
//	  view <record> [dst]                   open a received share
//	  unshare <record>                      remove a received share
//	  log [n]                               recent access log entries
//	  sweep                                 run the auto-delete pass
//	  export <file> | export --upload       export the vault
//	  panic                                 wipe everything
//	  lock, exit
//
// Before every command of an unlocked session the idle timeout is checked.
// Command errors are printed and the loop continues.
//
// The reader is shared with the prompt helpers, so commands that ask for
// more input consume the following lines.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("saveme %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !publicCommands[cmd] {
			if a.expireIfIdle(ctx) || !a.isLoggedIn() {
				printlnFn("Vault is locked. Use 'unlock' first.")
				continue
			}
		}

		err = nil
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: capture, files, reveal, rm, share, inbox, sent, view, unshare, log, sweep, export, panic, lock, exit")
			} else {
				printlnFn("Available commands: setup, unlock, exit")
			}

		case "setup":
			err = a.Setup(ctx, args)
		case "unlock":
			err = a.Unlock(ctx, args)
		case "lock":
			err = a.Lock(ctx)

		case "capture", "import":
			err = a.Capture(ctx, args)
		case "files", "l":
			err = a.Files(ctx)
		case "reveal":
			err = a.Reveal(ctx, args)
		case "rm":
			err = a.Remove(ctx, args)

		case "share":
			err = a.Share(ctx, args)
		case "inbox":
			err = a.Inbox(ctx)
		case "sent":
			err = a.Sent(ctx)
		case "view":
			err = a.View(ctx, args)
		case "unshare":
			err = a.Unshare(ctx, args)

		case "log":
			err = a.AccessLog(ctx, args)
		case "sweep":
			err = a.Sweep(ctx)
		case "export":
			err = a.Export(ctx, args)
		case "panic":
			err = a.Panic(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
