// Package fileio holds the small file helpers shared by the pipeline stages.
package fileio

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

const (
	DefaultFileMode = 0o644
	DefaultDirMode  = 0o755

	hashChunkSize = 8192
)

// SaveJSON writes v as indented JSON to path, creating parent directories
// and replacing any existing file. The write is not atomic.
func SaveJSON(v any, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return err
	}
	content, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, DefaultFileMode)
}

func LoadJSON(path string) (map[string]any, error) {
	into := map[string]any{}
	if err := LoadJSONInto(path, &into); err != nil {
		return nil, err
	}
	return into, nil
}

// LoadJSONInto decodes the single JSON value in path. Trailing content fails.
func LoadJSONInto(path string, into any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(content, into)
}

// FileDigest streams path through a sha256 digester in fixed size chunks.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := digest.Canonical.Digester()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(d.Hash(), f, buf); err != nil {
		return "", err
	}
	return d.Digest(), nil
}

// FileSHA256 returns the hex encoded sha256 of the file content.
func FileSHA256(path string) (string, error) {
	d, err := FileDigest(path)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}

// EnsureParent creates the parent directory of path.
func EnsureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), DefaultDirMode)
}
