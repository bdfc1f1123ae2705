package fs

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// TreeDigest returns a deterministic hash of the tree rooted at root. The
// relative pathname of every node is hashed, whether it is a directory, a
// file, or a symbolic link. The referent of a symbolic link and the size and
// contents of a regular file are hashed too. Where root itself lives does not
// affect the result.
func TreeDigest(root string) (string, error) {
	root = filepath.Clean(root)
	h := sha256.New()

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return err
			}
			// Hash writes never fail.
			_, _ = h.Write([]byte(filepath.ToSlash(rel)))
			_, _ = h.Write([]byte{0})

			switch {
			case de.IsSymlink():
				referent, err := os.Readlink(osPathname)
				if err != nil {
					return errors.Wrap(err, "cannot Readlink")
				}
				_, _ = h.Write([]byte(referent))
			case de.IsRegular():
				return hashFile(h, osPathname)
			}
			return nil
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "cannot digest %s", root)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func hashFile(w io.Writer, pathname string) error {
	f, err := os.Open(pathname)
	if err != nil {
		return errors.Wrap(err, "cannot Open")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "cannot Stat")
	}
	_, _ = w.Write([]byte(strconv.FormatInt(fi.Size(), 10)))
	_, err = io.Copy(w, f)
	return errors.Wrap(err, "cannot Copy")
}
