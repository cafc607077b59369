package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/saveme/internal/drive"
	"github.com/dmitrijs2005/saveme/internal/filex"
	"github.com/dmitrijs2005/saveme/internal/models"
)

// argOrPrompt returns args[i] or asks for it.
func (a *App) argOrPrompt(args []string, i int, prompt string) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	v, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s: value required", prompt)
	}
	return v, nil
}

// outputPath returns args[i] or a path under dir named after id.
func outputPath(args []string, i int, dir, id string) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	d, err := filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(d, id), nil
}

// Capture moves a photo or video into the secure drive:
//
//	capture <path> [image|video]
func (a *App) Capture(ctx context.Context, args []string) error {
	path, err := a.argOrPrompt(args, 0, "Enter media file path")
	if err != nil {
		return err
	}

	nf := drive.NewFile{OwnerID: a.userID, SourcePath: path}
	if len(args) > 1 {
		t, err := models.ParseMediaType(args[1])
		if err != nil {
			return err
		}
		nf.Type = t
	}

	f, err := a.vault.AddFile(ctx, nf)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s (%s)\n", f.ID, f.Type)
	return nil
}

// Files lists the secure drive.
func (a *App) Files(ctx context.Context) error {
	files, err := a.vault.ListFiles(ctx, a.userID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(a.out, "No files")
		return nil
	}
	for _, f := range files {
		fmt.Fprintln(a.out, formatFile(f))
	}
	return nil
}

// Reveal decrypts a file for viewing:
//
//	reveal <id> [dst]
func (a *App) Reveal(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, 0, "Enter file id")
	if err != nil {
		return err
	}
	dst, err := outputPath(args, 1, "revealed", id)
	if err != nil {
		return err
	}
	if err := a.vault.RevealFile(ctx, a.userID, id, dst); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "File saved to: %s\n", dst)
	return nil
}

// Remove deletes a file from the drive:
//
//	rm <id>
func (a *App) Remove(ctx context.Context, args []string) error {
	id, err := a.argOrPrompt(args, 0, "Enter file id to delete")
	if err != nil {
		return err
	}
	if err := a.vault.DeleteFile(ctx, a.userID, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}
