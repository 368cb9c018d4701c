package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/tracking"
)

func TestHashCmd(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(file, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := NewMlopsCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	// no settings file exists under this root
	cmd.SetArgs([]string{"--root", t.TempDir(), "hash", file})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("hash error = %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824  " + file + "\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestMissingSettings(t *testing.T) {
	cmd := NewMlopsCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", t.TempDir(), "ingest"})
	err := cmd.ExecuteContext(context.Background())
	if !errors.IsErrCode(err, errors.ErrCodeConfigNotFound) {
		t.Fatalf("ingest error = %v, want %s", err, errors.ErrCodeConfigNotFound)
	}
}

func TestIngestCmd(t *testing.T) {
	root := t.TempDir()
	settings := `
paths:
  raw_data: data/raw/iris.csv
  processed_data: data/processed/iris.csv
  train_data: data/processed/train.csv
  test_data: data/processed/test.csv
  model: models/model.json
  reports: reports/metrics.json
training:
  model_name: logistic_regression
  max_iter: 200
  test_size: 0.2
  random_state: 42
  registered_model_name: iris-classifier
mlflow:
  experiment_name: iris
minio:
  endpoint: 127.0.0.1:9000
  bucket_name: dvc-storage
`
	if err := os.WriteFile(filepath.Join(root, "mlops.yaml"), []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, stage := range []string{"ingest", "preprocess"} {
		cmd := NewMlopsCmd()
		cmd.SetArgs([]string{"--root", root, "--config", "mlops.yaml", stage})
		if err := cmd.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("%s error = %v", stage, err)
		}
	}
	content, err := os.ReadFile(filepath.Join(root, "data", "processed", "test.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(content), "\n"); lines != 31 {
		t.Errorf("test.csv lines = %d, want 31", lines)
	}
}

func TestAppTracker(t *testing.T) {
	t.Setenv(config.EnvTrackingURI, "http://127.0.0.1:5000/")
	t.Setenv(config.EnvAccessKey, "minioadmin")
	t.Setenv(config.EnvSecretKey, "minioadmin")
	settings, err := config.Parse([]byte(`
paths:
  raw_data: data/raw/iris.csv
  processed_data: data/processed/iris.csv
  train_data: data/processed/train.csv
  test_data: data/processed/test.csv
  model: models/model.json
  reports: reports/metrics.json
training:
  model_name: logistic_regression
  max_iter: 200
  test_size: 0.2
  random_state: 42
  registered_model_name: iris-classifier
mlflow:
  experiment_name: iris
minio:
  endpoint: 127.0.0.1:9000
  bucket_name: dvc-storage
`))
	if err != nil {
		t.Fatal(err)
	}
	app := &App{Options: &GlobalOptions{}, Settings: settings}
	tracker, err := app.Tracker(context.Background())
	if err != nil {
		t.Fatalf("Tracker() error = %v", err)
	}
	client, ok := tracker.(*tracking.MLflowClient)
	if !ok {
		t.Fatalf("Tracker() = %T", tracker)
	}
	if client.Addr != "http://127.0.0.1:5000" {
		t.Errorf("Addr = %s", client.Addr)
	}
	if client.Artifacts == nil {
		t.Errorf("tracker cannot write s3 artifact roots")
	}
	if client.Client.Timeout != 0 {
		t.Errorf("tracking client timeout = %v, want none", client.Client.Timeout)
	}
}
