package fileio

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "metrics.json")
	in := map[string]any{
		"test_accuracy": 0.9666666666666667,
		"classification_report": map[string]any{
			"0": map[string]any{"precision": 1.0, "support": 10.0},
		},
		"labels": []any{"a", "b"},
	}
	if err := SaveJSON(in, path); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	// overwrite must replace, not append
	if err := SaveJSON(in, path); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("LoadJSON() = %v, want %v", got, in)
	}
}

func TestLoadJSONErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadJSON(filepath.Join(dir, "absent.json")); !os.IsNotExist(err) {
		t.Errorf("LoadJSON(absent) error = %v, want not exist", err)
	}
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", "{not json"},
		{"trailing garbage", `{"a": 1} this is not json`},
		{"two values", `{"a": 1}{"b": 2}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		bad := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(bad, []byte(tt.content), DefaultFileMode); err != nil {
			t.Fatal(err)
		}
		if got, err := LoadJSON(bad); err == nil {
			t.Errorf("LoadJSON(%s) = %v, error = nil", tt.name, got)
		}
	}
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	// span several chunks
	content := make([]byte, 3*hashChunkSize+17)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, content, DefaultFileMode); err != nil {
		t.Fatal(err)
	}

	first, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("FileSHA256() error = %v", err)
	}
	second, _ := FileSHA256(path)
	if first != second {
		t.Errorf("hash not stable: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("hash %q is not hex sha256", first)
	}

	content[len(content)/2] ^= 0x01
	if err := os.WriteFile(path, content, DefaultFileMode); err != nil {
		t.Fatal(err)
	}
	changed, _ := FileSHA256(path)
	if changed == first {
		t.Errorf("hash did not change after a byte flip")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, nil, DefaultFileMode); err != nil {
		t.Fatal(err)
	}
	if got, _ := FileSHA256(empty); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("FileSHA256(empty) = %s", got)
	}
}
