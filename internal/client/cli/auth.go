package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/saveme/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// askUser returns the configured user id or prompts for one.
func (a *App) askUser(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.userID != "" {
		return a.userID, nil
	}
	return getSimpleText(a.reader, "Enter user id", a.out)
}

// Setup registers a passcode for a user. The passcode is asked twice.
func (a *App) Setup(ctx context.Context, args []string) error {
	userID, err := a.askUser(args)
	if err != nil {
		return err
	}

	passcode, err := getPassword(a.out, "Choose a passcode")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(passcode)

	again, err := getPassword(a.out, "Repeat passcode")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if string(passcode) != string(again) {
		return fmt.Errorf("%w: passcodes do not match", common.ErrorValidation)
	}

	if err := a.vault.Setup(ctx, userID, string(passcode)); err != nil {
		return err
	}

	a.userID = userID
	fmt.Fprintln(a.out, "Passcode set. Use 'unlock' to open the vault.")
	return nil
}

// Unlock verifies the passcode. A successful unlock also runs a sweep, so
// media past its deadline is gone before anything is listed.
func (a *App) Unlock(ctx context.Context, args []string) error {
	userID, err := a.askUser(args)
	if err != nil {
		return err
	}

	passcode, err := getPassword(a.out, "Enter passcode")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(passcode)

	if err := a.vault.Unlock(ctx, userID, string(passcode)); err != nil {
		return err
	}

	a.userID = userID
	a.unlocked = true
	fmt.Fprintf(a.out, "Unlocked as %s\n", userID)
	return nil
}

// Lock ends the session.
func (a *App) Lock(ctx context.Context) error {
	if !a.unlocked {
		return nil
	}
	a.unlocked = false
	if err := a.vault.Lock(ctx, a.userID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Locked")
	return nil
}

// expireIfIdle locks the app when the vault reports an idle timeout and
// records activity otherwise.
func (a *App) expireIfIdle(ctx context.Context) bool {
	if !a.unlocked {
		return false
	}
	expired, err := a.vault.SessionExpired(ctx, a.userID)
	if err != nil {
		a.logger.Warn(ctx, "session check failed", "error", err)
		return false
	}
	if expired {
		a.unlocked = false
		fmt.Fprintln(a.out, "Session timed out. Unlock again to continue.")
	}
	return expired
}
