// Package source enumerates ZIP containers under a root directory and the
// documents inside each of them.
package source

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Default extensions.
const (
	DefaultContainerExt = ".zip"
	DefaultDocumentExt  = ".pdf"
)

// Container is one archive discovered under the root.
type Container struct {
	Path    string // Path on disk, used to open the archive.
	RelPath string // Path relative to the root, slash separated; the stored container identity.
	Size    int64
}

// DocumentRef names one document inside an open archive.
type DocumentRef struct {
	Name        string // Raw entry name, used to read the entry.
	DisplayName string // URL-unescaped name, used as the stored identity.
	Size        int64  // Uncompressed size declared by the archive.

	index int
}

// Source yields containers in a stable order and opens them.
type Source interface {
	Containers(ctx context.Context) ([]Container, error)
	Open(path string) (Archive, error)
}

// Archive is an open container.
type Archive interface {
	// Documents lists the entries carrying the document extension, in
	// archive order.
	Documents() []DocumentRef
	Open(doc DocumentRef) (io.ReadCloser, error)
	Close() error
}

// OpenError reports that a container could not be opened or listed.
type OpenError struct {
	Container string
	Err       error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening container %s: %v", e.Container, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// NotFound reports whether the container does not exist on disk.
func (e *OpenError) NotFound() bool { return errors.Is(e.Err, fs.ErrNotExist) }

// ZipSource walks Root for ZIP archives.
type ZipSource struct {
	Root        string
	Include     []string // Glob patterns; only matching containers are used.
	Exclude     []string // Glob patterns; matching containers are skipped.
	DocumentExt string   // Defaults to DefaultDocumentExt.
}

// Containers walks the root in lexical order and returns every archive that
// passes the include and exclude filters. Unreadable subdirectories are
// skipped; an unreadable root is an error.
func (s *ZipSource) Containers(ctx context.Context) ([]Container, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("source: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: %s is not a directory", root)
	}

	var containers []Container
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasExt(d.Name(), DefaultContainerExt) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if !MatchesInclude(relPath, s.Include) || MatchesExclude(relPath, s.Exclude) {
			return nil
		}

		var size int64
		if fi, err := d.Info(); err == nil {
			size = fi.Size()
		}
		containers = append(containers, Container{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Size:    size,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: traversal: %w", err)
	}
	return containers, nil
}

// Open opens the archive at path. Failures are returned as *OpenError.
func (s *ZipSource) Open(path string) (Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, &OpenError{Container: path, Err: err}
	}

	ext := s.DocumentExt
	if ext == "" {
		ext = DefaultDocumentExt
	}

	a := &zipArchive{rc: rc}
	for i, f := range rc.File {
		if f.FileInfo().IsDir() || !hasExt(f.Name, ext) {
			continue
		}
		a.docs = append(a.docs, DocumentRef{
			Name:        f.Name,
			DisplayName: DisplayName(f.Name),
			Size:        int64(f.UncompressedSize64),
			index:       i,
		})
	}
	return a, nil
}

// DisplayName URL-unescapes an entry name. Names that do not unescape
// cleanly are returned unchanged.
func DisplayName(raw string) string {
	if !strings.Contains(raw, "%") {
		return raw
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return name
}

type zipArchive struct {
	rc   *zip.ReadCloser
	docs []DocumentRef
}

func (a *zipArchive) Documents() []DocumentRef { return a.docs }

func (a *zipArchive) Open(doc DocumentRef) (io.ReadCloser, error) {
	if doc.index < 0 || doc.index >= len(a.rc.File) || a.rc.File[doc.index].Name != doc.Name {
		return nil, fmt.Errorf("entry %s not in archive", doc.Name)
	}
	r, err := a.rc.File[doc.index].Open()
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", doc.Name, err)
	}
	return r, nil
}

func (a *zipArchive) Close() error { return a.rc.Close() }
