package deployment_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"heartrisk/deployment"
	"heartrisk/deployment/deploymenttest"
)

func TestLoadPreservesOrder(t *testing.T) {
	a := deploymenttest.Load(t)

	if strings.Join(a.Features, ",") != strings.Join(deploymenttest.Features, ",") {
		t.Fatalf("unexpected features %q", a.Features)
	}
	if strings.Join(a.Classes, ",") != strings.Join(deploymenttest.Classes, ",") {
		t.Fatalf("unexpected classes %q", a.Classes)
	}
	if a.Model.NumClasses() != len(deploymenttest.Classes) {
		t.Fatalf("unexpected class count %d", a.Model.NumClasses())
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deployment")
	_, err := deployment.Load(dir, deployment.DefaultFiles())

	var missing *deployment.MissingPathError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingPathError, got %v", err)
	}
	if missing.Path != dir {
		t.Fatalf("expected missing path %s, got %s", dir, missing.Path)
	}
}

func TestLoadReportsEveryMissingFile(t *testing.T) {
	dir := t.TempDir()
	deploymenttest.Write(t, dir)
	files := deployment.DefaultFiles()
	os.Remove(filepath.Join(dir, files.Model))
	os.Remove(filepath.Join(dir, files.Classes))

	_, err := deployment.Load(dir, files)
	if err == nil {
		t.Fatal("expected error")
	}
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), err)
	}
	if !strings.Contains(errs[0].Error(), files.Model) || !strings.Contains(errs[1].Error(), files.Classes) {
		t.Fatalf("unexpected errors: %v", err)
	}
}

func TestLoadRejectsClassCountMismatch(t *testing.T) {
	dir := t.TempDir()
	deploymenttest.Write(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "class_names.txt"), []byte("low\nhigh\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := deployment.Load(dir, deployment.DefaultFiles())
	if err == nil || !strings.Contains(err.Error(), "5 classes") {
		t.Fatalf("expected class count error, got %v", err)
	}
}

func TestLoadRejectsModelInputOutsideSchema(t *testing.T) {
	dir := t.TempDir()
	deploymenttest.Write(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "feature_columns.txt"), []byte("age\nsex\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := deployment.Load(dir, deployment.DefaultFiles())
	if err == nil || !strings.Contains(err.Error(), `"thal"`) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestWatchLogsArtifactChanges(t *testing.T) {
	a := deploymenttest.Load(t)
	core, logs := observer.New(zap.WarnLevel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- deployment.Watch(ctx, a, zap.New(core)) }()

	deadline := time.Now().Add(5 * time.Second)
	for logs.Len() == 0 && time.Now().Before(deadline) {
		// the watcher may not be registered yet on the first write
		if err := os.WriteFile(a.ClassesPath, []byte(strings.Join(deploymenttest.Classes, "\n")), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.Len() == 0 {
		t.Fatal("expected a warning for the changed artifact")
	}
}
