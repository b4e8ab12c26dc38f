package cli

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mcdonaldj/xboxftp/internal/adapters/memrepo"
	"github.com/mcdonaldj/xboxftp/internal/adapters/ratelimited"
	"github.com/mcdonaldj/xboxftp/internal/adapters/s3repo"
	"github.com/mcdonaldj/xboxftp/internal/config"
	"github.com/mcdonaldj/xboxftp/internal/mocks"
	"github.com/mcdonaldj/xboxftp/internal/upload"
)

func writeGameZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w := zip.NewWriter(f)
	for n, content := range files {
		fw, err := w.Create(n)
		if err != nil {
			t.Fatalf("zip Create failed: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("zip Write failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip Close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func memoryConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.TestMode = true
	cfg.MemoryUploadDelay = 0
	cfg.TempDir = filepath.Join(t.TempDir(), "stage")
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	return cfg
}

func TestNewRepositoryFactoryBackends(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	ctx := context.Background()

	cfg := memoryConfig(t)
	factory, err := NewRepositoryFactory(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("memory backend failed: %v", err)
	}
	if _, ok := factory.Create().(*memrepo.Repository); !ok {
		t.Errorf("memory backend created %T", factory.Create())
	}

	cfg = config.DefaultConfig()
	cfg.ProbeRateLimit = 5
	factory, err = NewRepositoryFactory(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("ftp backend failed: %v", err)
	}
	if _, ok := factory.Create().(*ratelimited.Repository); !ok {
		t.Errorf("rate limited ftp backend created %T", factory.Create())
	}

	cfg = config.DefaultConfig()
	cfg.Backend = config.BackendS3
	cfg.S3 = config.S3Config{Bucket: "games", Region: "eu-west-1", AccessKey: "key", SecretKey: "secret"}
	factory, err = NewRepositoryFactory(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("s3 backend failed: %v", err)
	}
	if _, ok := factory.Create().(*s3repo.Repository); !ok {
		t.Errorf("s3 backend created %T", factory.Create())
	}

	cfg = config.DefaultConfig()
	cfg.Backend = "smb"
	if _, err := NewRepositoryFactory(ctx, cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewUploaderRejectsUnknownStrategy(t *testing.T) {
	cfg := memoryConfig(t)
	if _, err := NewUploader(context.Background(), cfg, "random", mocks.NewRecordingNotifier()); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestDefaultUploadServiceMemoryRun(t *testing.T) {
	cfg := memoryConfig(t)
	archive := writeGameZip(t, t.TempDir(), "Halo.zip", map[string]string{
		"default.xbe":  "xbe",
		"maps/a10.map": "map data",
	})

	recorder := mocks.NewRecordingNotifier()
	svc := &defaultUploadService{}
	results, err := svc.Upload(context.Background(), cfg, UploadRequest{
		Archives: []string{archive},
		Notifier: recorder,
		Quiet:    true,
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, expected 1", len(results))
	}
	r := results[0]
	if r.State != upload.StateFinished || r.Err != nil {
		t.Fatalf("result = %+v", r)
	}
	if r.Game != "Halo" || r.FilesTransferred != 2 {
		t.Errorf("result = %+v, expected Halo with 2 files", r)
	}
	if recorder.Count("FinishedGameUpload", "Halo") != 1 {
		t.Error("expected FinishedGameUpload to reach the extra notifier")
	}

	logs, err := os.ReadDir(cfg.LogDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(logs) < 2 {
		t.Errorf("expected main and game log files, found %d", len(logs))
	}
}

func TestDefaultUploadServiceCheck(t *testing.T) {
	cfg := memoryConfig(t)
	archive := writeGameZip(t, t.TempDir(), "Fable.zip", map[string]string{"default.xbe": "xbe"})

	res, err := (&defaultUploadService{}).Check(context.Background(), cfg, archive)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Game != "Fable" || res.FilesTotal != 1 || len(res.Report.RemainingFiles) != 1 {
		t.Errorf("Check() = %+v", res)
	}
}
