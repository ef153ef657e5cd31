//go:build !windows

package strengthen

import (
	"errors"
	"os"
)

func Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func Remove(name string) error {
	return os.Remove(name)
}

// FinalizeObject publishes the content-addressed temp file at oldpath under
// newpath. Since the destination is content-addressed its bytes are already
// correct if it exists, so a concurrent writer losing the race is not an
// error: the loser just discards its temp file.
func FinalizeObject(oldpath string, newpath string) (err error) {
	if err = os.Link(oldpath, newpath); err == nil {
		return os.Remove(oldpath)
	}
	if errors.Is(err, os.ErrExist) {
		return os.Remove(oldpath)
	}
	// cross-device or filesystem without hardlink support: fall back to rename.
	if err = os.Rename(oldpath, newpath); err == nil {
		return nil
	}
	return err
}
