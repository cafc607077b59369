// Package cli provides the interactive saveme command-line client.
//
// The App runs either an in-process vault over a local store or talks to a
// daemon through the gRPC client; both satisfy services.Vault, so every
// command behaves the same way. A background watcher tracks daemon
// reachability in remote mode.
//
// Typical flow: unlock with a passcode, capture media into the secure
// drive, share it with other users, and let the auto-delete sweep remove it
// 24 hours after it was shared. The REPL is started via App.Root(ctx), which
// blocks until the user exits. See runREPL for the command list.
package cli
