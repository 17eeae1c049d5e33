package relocate

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"sorter/internal/classify"
	"sorter/internal/watchset"
)

func newDecision(t *testing.T, root, name string) classify.Decision {
	t.Helper()
	ws, _, err := watchset.New([]string{root}, []watchset.Category{
		{Name: "images", Extensions: []string{"jpg", "png"}},
		{Name: "docs", Extensions: []string{"pdf"}},
	})
	if err != nil {
		t.Fatalf("watchset: %v", err)
	}
	d := classify.Classify(filepath.Join(root, name), ws)
	if !d.Routed() {
		t.Fatalf("expected %s to route, got %+v", name, d)
	}
	return d
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func requireMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected %s to be gone, stat err = %v", path, err)
	}
}

func TestRelocateCreatesDirectoryAndMoves(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "photo.jpg")
	writeFile(t, src, "jpeg")

	result, err := New(Options{}).Relocate(newDecision(t, root, "photo.jpg"))
	if err != nil {
		t.Fatalf("relocate: %v", err)
	}
	want := filepath.Join(root, "images", "photo.jpg")
	if result.Destination != want || result.Renamed || result.Copied {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.CreatedDir {
		t.Fatal("expected destination directory to be created")
	}
	if got := readFile(t, want); got != "jpeg" {
		t.Fatalf("moved content = %q", got)
	}
	requireMissing(t, src)

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "images" || !entries[0].IsDir() {
		t.Fatalf("expected exactly one category directory, got %v", entries)
	}
	info, err := os.Stat(filepath.Join(root, "images"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o700 != 0o700 {
		t.Fatalf("unexpected directory mode %o", info.Mode().Perm())
	}
}

func TestRelocateReusesExistingDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "report.pdf"), "pdf")

	result, err := New(Options{}).Relocate(newDecision(t, root, "report.pdf"))
	if err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if result.CreatedDir {
		t.Fatal("existing directory reported as created")
	}
}

func TestRelocateTwiceFailsCleanly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "photo.jpg"), "jpeg")
	d := newDecision(t, root, "photo.jpg")
	r := New(Options{})

	if _, err := r.Relocate(d); err != nil {
		t.Fatalf("first relocate: %v", err)
	}
	_, err := r.Relocate(d)
	if err == nil {
		t.Fatal("expected second relocate to fail")
	}
	if !errors.Is(err, ErrMoveFailed) || !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("expected ErrMoveFailed wrapping ErrSourceMissing, got %v", err)
	}
	if got := readFile(t, d.DestinationPath); got != "jpeg" {
		t.Fatalf("destination corrupted: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "images", "photo (1).jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("second attempt must not create a duplicate")
	}
}

func TestRelocateCollisionPolicies(t *testing.T) {
	cases := []struct {
		policy      string
		wantErr     error
		wantDest    string
		wantContent map[string]string
	}{
		{
			policy:   ConflictRename,
			wantDest: "photo (2).jpg",
			wantContent: map[string]string{
				"photo.jpg":     "existing",
				"photo (1).jpg": "first copy",
				"photo (2).jpg": "incoming",
			},
		},
		{
			policy:  ConflictError,
			wantErr: ErrDestinationExists,
			wantContent: map[string]string{
				"photo.jpg": "existing",
			},
		},
		{
			policy:   ConflictOverwrite,
			wantDest: "photo.jpg",
			wantContent: map[string]string{
				"photo.jpg": "incoming",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			root := t.TempDir()
			images := filepath.Join(root, "images")
			if err := os.Mkdir(images, 0o755); err != nil {
				t.Fatal(err)
			}
			writeFile(t, filepath.Join(images, "photo.jpg"), "existing")
			if tc.policy == ConflictRename {
				writeFile(t, filepath.Join(images, "photo (1).jpg"), "first copy")
			}
			src := filepath.Join(root, "photo.jpg")
			writeFile(t, src, "incoming")

			result, err := New(Options{OnConflict: tc.policy}).Relocate(newDecision(t, root, "photo.jpg"))
			if tc.wantErr != nil {
				if !errors.Is(err, ErrMoveFailed) || !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if got := readFile(t, src); got != "incoming" {
					t.Fatalf("source must stay in place, got %q", got)
				}
			} else {
				if err != nil {
					t.Fatalf("relocate: %v", err)
				}
				if result.Destination != filepath.Join(images, tc.wantDest) {
					t.Fatalf("destination = %q", result.Destination)
				}
				if result.Renamed != (tc.policy == ConflictRename) {
					t.Fatalf("renamed = %v", result.Renamed)
				}
				requireMissing(t, src)
			}
			for name, want := range tc.wantContent {
				if got := readFile(t, filepath.Join(images, name)); got != want {
					t.Fatalf("%s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestRelocateDirectoryCreateFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "images"), "not a directory")
	writeFile(t, filepath.Join(root, "photo.jpg"), "jpeg")

	_, err := New(Options{}).Relocate(newDecision(t, root, "photo.jpg"))
	if !errors.Is(err, ErrDirectoryCreateFailed) {
		t.Fatalf("expected ErrDirectoryCreateFailed, got %v", err)
	}
	var relocErr *RelocateError
	if !errors.As(err, &relocErr) || relocErr.Destination != filepath.Join(root, "images") {
		t.Fatalf("unexpected error detail %#v", err)
	}
	if got := readFile(t, filepath.Join(root, "photo.jpg")); got != "jpeg" {
		t.Fatalf("source disturbed: %q", got)
	}
}

func TestRelocateRejectsIgnoredDecision(t *testing.T) {
	_, err := New(Options{}).Relocate(classify.Decision{SourcePath: "/data/inbox/notes.txt"})
	if !errors.Is(err, ErrNotRouted) {
		t.Fatalf("expected ErrNotRouted, got %v", err)
	}
}

func TestCopyAcrossRemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "dst.pdf")
	writeFile(t, src, "payload")

	if err := copyAcross(src, dst, false); err != nil {
		t.Fatalf("copyAcross: %v", err)
	}
	requireMissing(t, src)
	if got := readFile(t, dst); got != "payload" {
		t.Fatalf("copied content = %q", got)
	}

	writeFile(t, src, "replacement")
	if err := copyAcross(src, dst, true); err != nil {
		t.Fatalf("copyAcross overwrite: %v", err)
	}
	if got := readFile(t, dst); got != "replacement" {
		t.Fatalf("overwrite content = %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestCopyAcrossKeepsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.pdf")
	writeFile(t, target, "payload")
	link := filepath.Join(dir, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	dst := filepath.Join(dir, "docs.pdf")

	if err := copyAcross(link, dst, false); err != nil {
		t.Fatalf("copyAcross: %v", err)
	}
	requireMissing(t, link)
	info, err := os.Lstat(dst)
	if err != nil {
		t.Fatalf("lstat destination: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("destination is not a symlink: %v", info.Mode())
	}
	if got, err := os.Readlink(dst); err != nil || got != target {
		t.Fatalf("link target = %q (err=%v), want %q", got, err, target)
	}
	if got := readFile(t, target); got != "payload" {
		t.Fatalf("link target changed: %q", got)
	}

	other := filepath.Join(dir, "other.pdf")
	if err := os.Symlink(target, other); err != nil {
		t.Fatal(err)
	}
	if err := copyAcross(other, dst, false); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist without overwrite, got %v", err)
	}
	if err := copyAcross(other, dst, true); err != nil {
		t.Fatalf("copyAcross overwrite: %v", err)
	}
	requireMissing(t, other)
}

func TestSuffixedPath(t *testing.T) {
	cases := []struct {
		path string
		n    int
		want string
	}{
		{"/r/images/photo.jpg", 0, "/r/images/photo.jpg"},
		{"/r/images/photo.jpg", 3, "/r/images/photo (3).jpg"},
		{"/r/archives/backup.tar.gz", 1, "/r/archives/backup (1).tar.gz"},
		{"/r/misc/.env", 2, "/r/misc/.env (2)"},
		{"/r/docs/.notes.md", 1, "/r/docs/.notes (1).md"},
		{"/r/misc/README", 1, "/r/misc/README (1)"},
	}
	for _, tc := range cases {
		if got := suffixedPath(tc.path, tc.n); got != tc.want {
			t.Fatalf("suffixedPath(%q, %d) = %q, want %q", tc.path, tc.n, got, tc.want)
		}
	}
}

func TestHint(t *testing.T) {
	crossDevice := &RelocateError{Kind: ErrMoveFailed, Err: &os.LinkError{Op: "rename", Err: syscall.EXDEV}}
	if got := Hint(crossDevice); got == Hint(errors.New("other")) {
		t.Fatalf("cross-device failures need their own hint, got %q", got)
	}
	if Hint(&RelocateError{Kind: ErrMoveFailed, Err: ErrSourceMissing}) == "" {
		t.Fatal("expected hint")
	}
}

func TestPolicyValidation(t *testing.T) {
	for _, name := range []string{ConflictRename, ConflictError, ConflictOverwrite} {
		if !ValidConflictPolicy(name) {
			t.Fatalf("%s should be valid", name)
		}
	}
	if ValidConflictPolicy("skip") || ValidCrossDeviceMode("link") {
		t.Fatal("unknown names must be rejected")
	}
}
