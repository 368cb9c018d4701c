package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	iopath "path"
	"path/filepath"
	"strings"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/fileio"
)

type LocalFSOptions struct {
	Basepath string
}

var _ FSProvider = &LocalFSProvider{}

type LocalFSProvider struct {
	basepath string
}

// NewLocalFSProvider stores blobs below options.Basepath. Directories are
// created on the first Put.
func NewLocalFSProvider(options *LocalFSOptions) (*LocalFSProvider, error) {
	return &LocalFSProvider{basepath: options.Basepath}, nil
}

type localFileMeta struct {
	ContentType   string `json:"contentType,omitempty"`
	ContentLength int64  `json:"contentLength,omitempty"`
}

func (f *LocalFSProvider) Put(ctx context.Context, path string, content BlobContent) error {
	if err := f.writemeta(path, content); err != nil {
		return err
	}
	return f.writedata(path, content)
}

func (f *LocalFSProvider) Get(ctx context.Context, path string) (BlobContent, error) {
	meta, err := f.readmeta(path)
	if err != nil {
		return BlobContent{}, err
	}
	stream, err := os.Open(f.fullpath(path))
	if err != nil {
		return BlobContent{}, notFoundOr(path, err)
	}
	return BlobContent{
		ContentType:   meta.ContentType,
		ContentLength: meta.ContentLength,
		Content:       stream,
	}, nil
}

func (f *LocalFSProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(f.fullpath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (f *LocalFSProvider) List(ctx context.Context, path string, recursive bool) ([]FsObjectMeta, error) {
	out := []FsObjectMeta{}
	root := f.fullpath(path)
	if recursive {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && p == root {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || strings.HasSuffix(p, ".meta") {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, FsObjectMeta{
				Name:         filepath.ToSlash(rel),
				Size:         fi.Size(),
				LastModified: fi.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	files, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	for _, fi := range files {
		if fi.IsDir() || strings.HasSuffix(fi.Name(), ".meta") {
			continue
		}
		finfo, err := fi.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, FsObjectMeta{
			Name:         fi.Name(),
			Size:         finfo.Size(),
			LastModified: finfo.ModTime(),
		})
	}
	return out, nil
}

func (f *LocalFSProvider) fullpath(path string) string {
	return filepath.Join(f.basepath, filepath.FromSlash(iopath.Clean("/"+path)))
}

func (f *LocalFSProvider) writemeta(path string, content BlobContent) error {
	meta := localFileMeta{
		ContentType:   content.ContentType,
		ContentLength: content.ContentLength,
	}
	jsonData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	metafile := f.fullpath(path) + ".meta"
	if err := os.MkdirAll(filepath.Dir(metafile), fileio.DefaultDirMode); err != nil {
		return err
	}
	return os.WriteFile(metafile, jsonData, fileio.DefaultFileMode)
}

func (f *LocalFSProvider) writedata(path string, content BlobContent) error {
	fi, err := os.OpenFile(f.fullpath(path), os.O_RDWR|os.O_CREATE|os.O_TRUNC, fileio.DefaultFileMode)
	if err != nil {
		return err
	}
	defer fi.Close()
	if _, err := io.Copy(fi, content.Content); err != nil {
		return err
	}
	return fi.Close()
}

func (f *LocalFSProvider) readmeta(path string) (*localFileMeta, error) {
	raw, err := os.ReadFile(f.fullpath(path) + ".meta")
	if err != nil {
		return nil, notFoundOr(path, err)
	}
	var meta localFileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func notFoundOr(path string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return err
}
