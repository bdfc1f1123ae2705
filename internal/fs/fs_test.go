// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/xpackagemanager/xpm/internal/test"
)

func TestRenameWithFallback(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	h.TempDir(".")
	if err := RenameWithFallback(h.Path("does_not_exists"), h.Path("dst")); err == nil {
		t.Fatal("expected error for non existing file, but got nil")
	}

	h.TempFile("src", "contents")
	if err := RenameWithFallback(h.Path("src"), h.Path("dst")); err != nil {
		t.Fatal(err)
	}
	h.MustNotExist(h.Path("src"))
	if got := h.ReadFile("dst"); got != "contents" {
		t.Fatalf("expected renamed file to hold %q, got %q", "contents", got)
	}

	h.TempFile("a/file", "a")
	h.TempFile("b/file", "b")
	if err := RenameWithFallback(h.Path("a"), h.Path("b")); err == nil {
		t.Fatal("expected error renaming a directory over an existing one")
	}
	if got := h.ReadFile("b/file"); got != "b" {
		t.Fatalf("existing directory was modified: %q", got)
	}
}

func TestRenameByCopy(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	h.TempFile("src/bin/tool", "#!/bin/sh\n")
	h.TempFile("src/share/doc", "docs")
	h.TempFile("single", "one file")

	if err := renameByCopy(h.Path("src"), h.Path("dst")); err != nil {
		t.Fatal(err)
	}
	h.MustNotExist(h.Path("src"))
	if got := h.ReadFile("dst/share/doc"); got != "docs" {
		t.Fatalf("expected copied file to hold %q, got %q", "docs", got)
	}

	if err := renameByCopy(h.Path("single"), h.Path("moved")); err != nil {
		t.Fatal(err)
	}
	h.MustNotExist(h.Path("single"))
	if got := h.ReadFile("moved"); got != "one file" {
		t.Fatalf("expected copied file to hold %q, got %q", "one file", got)
	}
}

func TestCopyTree(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	files := []struct {
		path     string
		contents string
		fi       os.FileInfo
	}{
		{path: "myfile", contents: "hello world"},
		{path: filepath.Join("subdir", "file"), contents: "subdir file"},
	}

	for i, file := range files {
		h.TempFile(filepath.Join("src", file.path), file.contents)
		fi, err := os.Stat(h.Path(filepath.Join("src", file.path)))
		if err != nil {
			t.Fatal(err)
		}
		files[i].fi = fi
	}
	if runtime.GOOS != "windows" {
		if err := os.Symlink("myfile", h.Path("src/link")); err != nil {
			t.Fatal(err)
		}
	}

	destdir := h.Path("dest")
	if err := CopyTree(h.Path("src"), destdir); err != nil {
		t.Fatal(err)
	}

	for _, file := range files {
		fn := filepath.Join(destdir, file.path)
		got, err := ioutil.ReadFile(fn)
		if err != nil {
			t.Fatal(err)
		}
		if file.contents != string(got) {
			t.Fatalf("expected: %s, got: %s", file.contents, string(got))
		}

		gotinfo, err := os.Stat(fn)
		if err != nil {
			t.Fatal(err)
		}
		if file.fi.Mode() != gotinfo.Mode() {
			t.Fatalf("expected %s: %#v\n to be the same mode as %s: %#v",
				file.path, file.fi.Mode(), fn, gotinfo.Mode())
		}
	}

	if runtime.GOOS != "windows" {
		referent, err := os.Readlink(filepath.Join(destdir, "link"))
		if err != nil {
			t.Fatal(err)
		}
		if referent != "myfile" {
			t.Fatalf("expected symlink to myfile, got %s", referent)
		}
	}

	if err := CopyTree(h.Path("src"), destdir); err == nil {
		t.Fatal("expected error copying over an existing destination")
	}
}

func TestIsDir(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	h.TempDir("dir")
	h.TempFile("file", "")

	tests := map[string]struct {
		exists bool
		err    bool
	}{
		h.Path("dir"):     {true, false},
		h.Path("file"):    {false, true},
		h.Path("missing"): {false, true},
	}

	for f, want := range tests {
		got, err := IsDir(f)
		if (err != nil) != want.err {
			t.Fatalf("IsDir(%s): expected error %t, got %v", f, want.err, err)
		}
		if got != want.exists {
			t.Fatalf("expected %t for %s, got %t", want.exists, f, got)
		}
	}
}

func TestIsNonEmptyDir(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	h.TempDir("empty")
	h.TempFile("full/file", "x")

	tests := map[string]string{
		h.Path("full"):      "true",
		h.Path("full/file"): "err",
		h.Path("missing"):   "false",
		h.Path("empty"):     "false",
	}

	for f, want := range tests {
		nonEmpty, err := IsNonEmptyDir(f)
		if want == "err" {
			if err == nil {
				t.Fatalf("Wanted an error for %v, but it was nil", f)
			}
			if nonEmpty {
				t.Fatalf("Wanted false with error for %v, but got true", f)
			}
		} else if err != nil {
			t.Fatalf("Wanted no error for %v, got %v", f, err)
		}

		if want == "true" && !nonEmpty {
			t.Fatalf("Wanted true for %v, but got false", f)
		}
		if want == "false" && nonEmpty {
			t.Fatalf("Wanted false for %v, but got true", f)
		}
	}
}

func TestExists(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	h.TempFile("file", "")
	if ok, err := Exists(h.Path("file")); err != nil || !ok {
		t.Fatalf("expected file to exist, got %t, %v", ok, err)
	}
	if ok, err := Exists(h.Path("missing")); err != nil || ok {
		t.Fatalf("expected missing to not exist, got %t, %v", ok, err)
	}

	if runtime.GOOS == "windows" {
		return
	}
	if err := os.Symlink("nowhere", h.Path("dangling")); err != nil {
		t.Fatal(err)
	}
	if ok, err := Exists(h.Path("dangling")); err != nil || !ok {
		t.Fatalf("expected dangling symlink to exist, got %t, %v", ok, err)
	}
}
