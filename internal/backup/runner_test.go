package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/ybenkhadda/dockback/internal/archive"
	"github.com/ybenkhadda/dockback/internal/config"
	"github.com/ybenkhadda/dockback/internal/logger"
	"github.com/ybenkhadda/dockback/internal/snapshot"
)

// failOnceCopier injects one scripted failure for a named entry, then
// delegates to the real copier.
type failOnceCopier struct {
	real     Copier
	failName string
	failErr  error
	failed   bool
}

func (f *failOnceCopier) Copy(sourcePath, destPath string) error {
	if !f.failed && filepath.Base(sourcePath) == f.failName {
		f.failed = true
		return f.failErr
	}
	return f.real.Copy(sourcePath, destPath)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Config{}
	cfg.Backup.SourceDir = filepath.Join(base, "config")
	cfg.Backup.StagingDir = filepath.Join(base, "backups", "temp")
	cfg.Backup.ArchiveDir = filepath.Join(base, "backups")
	cfg.Docker.ProjectsDir = filepath.Join(base, "docker")
	cfg.Retention.KeepLast = 7
	cfg.Retry.QuiescenceDelay = 10 * time.Second
	if err := os.MkdirAll(cfg.Backup.SourceDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return cfg
}

func addSourceDir(t *testing.T, cfg config.Config, name, file, content string) {
	t.Helper()
	path := filepath.Join(cfg.Backup.SourceDir, name, file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestRunner(cfg config.Config, copier Copier, coord Coordinator) *Runner {
	r := NewRunner(cfg, copier, coord, logger.Nop())
	r.sleep = func(time.Duration) {}
	return r
}

func zipNames(t *testing.T, path string) map[string]bool {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive %s: %v", path, err)
	}
	defer zr.Close()
	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}
	return names
}

func TestRun_EmptySourceProducesNoArchive(t *testing.T) {
	cfg := testConfig(t)
	r := newTestRunner(cfg, snapshot.NewDirCopier(logger.Nop()), &fakeCoordinator{})

	sum, err := r.Run()
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(sum.Items) != 0 {
		t.Errorf("items = %d, want 0", len(sum.Items))
	}
	if sum.ArchivePath != "" {
		t.Errorf("archive produced for empty run: %s", sum.ArchivePath)
	}
	entries, _ := os.ReadDir(cfg.Backup.ArchiveDir)
	for _, e := range entries {
		if e.Name() != "temp" {
			t.Errorf("unexpected file in archive dir: %s", e.Name())
		}
	}
}

func TestRun_MissingSourceRootAbortsBeforeItems(t *testing.T) {
	cfg := testConfig(t)
	os.RemoveAll(cfg.Backup.SourceDir)
	r := newTestRunner(cfg, snapshot.NewDirCopier(logger.Nop()), &fakeCoordinator{})

	if _, err := r.Run(); err == nil {
		t.Fatal("Run succeeded with unreadable source root")
	}
}

func TestRun_SkipsTopLevelFiles(t *testing.T) {
	cfg := testConfig(t)
	addSourceDir(t, cfg, "svcA", "a.conf", "a")
	if err := os.WriteFile(filepath.Join(cfg.Backup.SourceDir, "README"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := newTestRunner(cfg, snapshot.NewDirCopier(logger.Nop()), &fakeCoordinator{})

	sum, err := r.Run()
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(sum.Items) != 1 || sum.Items[0].Entry.Name != "svcA" {
		t.Errorf("unexpected items: %+v", sum.Items)
	}
}

func TestRun_OneResultPerDirectoryDespiteFailures(t *testing.T) {
	cfg := testConfig(t)
	for _, name := range []string{"svcA", "svcB", "svcC"} {
		addSourceDir(t, cfg, name, "app.conf", name)
	}
	copier := &failOnceCopier{
		real:     snapshot.NewDirCopier(logger.Nop()),
		failName: "svcB",
		failErr:  contention(),
	}
	// svcB is unmanaged, so its failure is terminal; the run keeps going.
	r := newTestRunner(cfg, copier, &fakeCoordinator{managed: false})

	sum, err := r.Run()
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(sum.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(sum.Items))
	}
	succeeded, recovered, failed := sum.Counts()
	if succeeded != 2 || recovered != 0 || failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/0/1", succeeded, recovered, failed)
	}
	// A run with failures still archives whatever staged cleanly.
	if sum.ArchivePath == "" {
		t.Error("no archive produced despite attempted entries")
	}
}

func TestRun_RecoveryScenario(t *testing.T) {
	cfg := testConfig(t)
	addSourceDir(t, cfg, "svcA", "a.conf", "alpha")
	addSourceDir(t, cfg, "svcB", "b.conf", "beta")

	copier := &failOnceCopier{
		real:     snapshot.NewDirCopier(logger.Nop()),
		failName: "svcB",
		failErr:  contention(),
	}
	coord := &fakeCoordinator{managed: true}
	r := newTestRunner(cfg, copier, coord)

	sum, err := r.Run()
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(sum.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(sum.Items))
	}
	if sum.Items[0].Entry.Name != "svcA" || sum.Items[0].Outcome != Succeeded {
		t.Errorf("item[0] = %s/%v, want svcA/Succeeded", sum.Items[0].Entry.Name, sum.Items[0].Outcome)
	}
	if sum.Items[1].Entry.Name != "svcB" || sum.Items[1].Outcome != SucceededAfterRetry {
		t.Errorf("item[1] = %s/%v, want svcB/SucceededAfterRetry", sum.Items[1].Entry.Name, sum.Items[1].Outcome)
	}
	if coord.starts != 1 {
		t.Errorf("starts = %d, want exactly 1", coord.starts)
	}

	if sum.ArchivePath == "" {
		t.Fatal("no archive produced")
	}
	names := zipNames(t, sum.ArchivePath)
	if !names["svcA/a.conf"] || !names["svcB/b.conf"] {
		t.Errorf("archive missing entries, got %v", names)
	}
	// Staging is removed once the archive exists.
	if _, err := os.Stat(cfg.Backup.StagingDir); !os.IsNotExist(err) {
		t.Error("staging tree survived a successful archive")
	}
}

func TestRun_RotatesAfterArchiving(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention.KeepLast = 2
	addSourceDir(t, cfg, "svcA", "a.conf", "alpha")

	if err := os.MkdirAll(cfg.Backup.ArchiveDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := []string{
		archive.Name(time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)),
		archive.Name(time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)),
	}
	for _, name := range old {
		if err := os.WriteFile(filepath.Join(cfg.Backup.ArchiveDir, name), []byte("zip"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	r := newTestRunner(cfg, snapshot.NewDirCopier(logger.Nop()), &fakeCoordinator{})
	sum, err := r.Run()
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(sum.RotationDeleted) != 1 || sum.RotationDeleted[0] != old[0] {
		t.Errorf("rotation deleted %v, want [%s]", sum.RotationDeleted, old[0])
	}
}
