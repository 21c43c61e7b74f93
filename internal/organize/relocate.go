package organize

import (
	"bytes"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"mfo/internal/errors"
)

// renameChecked is the portable fallback: a stat check followed by a plain
// rename. The window between the two is the reason the Mover re-resolves
// on every attempt.
func renameChecked(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: os.ErrExist}
	}
	return os.Rename(src, dst)
}

// Relocate moves src to dst without ever replacing an existing dst. Moves
// across filesystems fall back to a verified copy followed by removal of
// the source. The returned error is a *errors.FileError whose kind tells
// the retry loop what happened.
func Relocate(src, dst string) error {
	err := renameNoReplace(src, dst)
	if err == nil {
		return nil
	}
	if isCrossDevice(err) {
		return copyThenRemove(src, dst)
	}
	return classifyMoveError(err, src, dst)
}

func isCrossDevice(err error) bool {
	return stderrors.Is(err, syscall.EXDEV)
}

func classifyMoveError(err error, src, dst string) error {
	switch {
	case stderrors.Is(err, os.ErrExist):
		return errors.NewFileError("target already exists", dst, errors.TargetExists, err)
	case stderrors.Is(err, os.ErrNotExist):
		if _, serr := os.Lstat(src); os.IsNotExist(serr) {
			return errors.NewFileError("source file not found", src, errors.FileNotFound, err)
		}
		return errors.NewFileError("destination directory missing", dst, errors.InvalidPath, err)
	case stderrors.Is(err, os.ErrPermission):
		return errors.NewFileError("permission denied", src, errors.FileAccessDenied, err)
	}
	return errors.NewFileError("move failed", src, errors.FileOperationFailed, err)
}

// copyThenRemove copies src into a new dst, verifies size and hash, then
// deletes src. On any failure dst is removed again, so exactly one copy
// survives.
func copyThenRemove(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return classifyMoveError(err, src, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return classifyMoveError(err, src, dst)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return classifyMoveError(err, src, dst)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcHash := sha256.New()
	dstHash := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHash), io.TeeReader(in, srcHash))
	if err != nil {
		out.Close()
		return errors.NewFileError("cross-device copy failed", dst, errors.CrossDevice, err)
	}
	if err = out.Sync(); err == nil {
		err = out.Close()
	} else {
		out.Close()
	}
	if err != nil {
		return errors.NewFileError("cross-device copy failed", dst, errors.CrossDevice, err)
	}
	if written != info.Size() {
		err = fmt.Errorf("source %d bytes, copied %d bytes", info.Size(), written)
		return errors.NewFileError("cross-device copy size mismatch", dst, errors.CrossDevice, err)
	}
	if !bytes.Equal(srcHash.Sum(nil), dstHash.Sum(nil)) {
		err = fmt.Errorf("hash mismatch")
		return errors.NewFileError("cross-device copy corrupted", dst, errors.CrossDevice, err)
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	if err = os.Remove(src); err != nil {
		return classifyMoveError(err, src, dst)
	}
	return nil
}
