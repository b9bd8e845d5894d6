package extract

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// FileMeta holds metadata about a local file queued for ingestion.
type FileMeta struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// DiscoverSupportedFiles recursively finds ingestible files under
// rootDir. Files that cannot be stat'd are skipped.
func DiscoverSupportedFiles(ctx context.Context, rootDir string) ([]FileMeta, error) {
	var files []FileMeta
	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !Supported(d.Name()) {
			return nil
		}
		meta, metaErr := StatFile(path)
		if metaErr != nil {
			return nil
		}
		files = append(files, meta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// StatFile extracts metadata from a file path.
func StatFile(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
