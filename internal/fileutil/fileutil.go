package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// ErrVerifyFailed marks a copy whose size or digest differs from the source.
var ErrVerifyFailed = errors.New("copy verification failed")

// CopyVerified copies src to a new file at dst, preserving the source mode and
// modification time, and checks size and SHA-256 of what was written. dst must
// not exist. A partial or mismatched dst is removed before returning.
func CopyVerified(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if !srcInfo.Mode().IsRegular() {
		return 0, fmt.Errorf("copy %s: not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return 0, err
	}
	keep := false
	defer func() {
		if !keep {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return written, err
	}
	if err := out.Sync(); err != nil {
		return written, err
	}
	if err := out.Close(); err != nil {
		return written, err
	}
	if written != srcInfo.Size() {
		return written, fmt.Errorf("%w: source %d bytes, copied %d bytes", ErrVerifyFailed, srcInfo.Size(), written)
	}

	dstSum, err := fileDigest(dst)
	if err != nil {
		return written, fmt.Errorf("hash destination: %w", err)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstSum) {
		return written, fmt.Errorf("%w: digest mismatch", ErrVerifyFailed)
	}

	_ = os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
	keep = true
	return written, nil
}

func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Exists reports whether path names any filesystem entry, without following
// symlinks.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
