package pack

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/remolder/internal/resource"
)

// SidecarExt is appended to a resource's location to name its metadata file.
const SidecarExt = ".mcmeta"

// Source supplies the resources of one pack.
type Source interface {
	// ID identifies the pack; remolder pack filters match against it.
	ID() string
	// Locations lists resource locations in lexical order.
	Locations() ([]string, error)
	Resource(location string) (resource.Resource, error)
}

// Sink stores remolded resources.
type Sink interface {
	Put(location string, res resource.Resource) error
}

// DirSource reads a pack laid out as a directory tree. Metadata for a file
// lives next to it in <file>.mcmeta.
type DirSource struct {
	id string
	fs billy.Filesystem
}

// NewDirSource returns a source over fs.
func NewDirSource(id string, fs billy.Filesystem) *DirSource {
	return &DirSource{id: id, fs: fs}
}

func (s *DirSource) ID() string { return s.id }

func (s *DirSource) Locations() ([]string, error) {
	var files []string
	if err := walkFiles(s.fs, "", &files); err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	locations := files[:0]
	for _, f := range files {
		if strings.HasSuffix(f, SidecarExt) && present[strings.TrimSuffix(f, SidecarExt)] {
			continue
		}
		locations = append(locations, f)
	}
	sort.Strings(locations)
	return locations, nil
}

func walkFiles(fs billy.Filesystem, dir string, out *[]string) error {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}
	for _, e := range entries {
		p := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := walkFiles(fs, p, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, p)
	}
	return nil
}

func (s *DirSource) Resource(location string) (resource.Resource, error) {
	name := filepath.FromSlash(location)
	if _, err := s.fs.Stat(name); err != nil {
		return resource.Resource{}, fmt.Errorf("resource %s: %w", location, err)
	}
	open := func() (io.ReadCloser, error) { return s.fs.Open(name) }

	sidecar := name + SidecarExt
	if _, err := s.fs.Stat(sidecar); err != nil {
		return resource.New(s.id, open), nil
	}
	return resource.New(s.id, open, resource.WithMetadataOpener(func() (*resource.Metadata, error) {
		f, err := s.fs.Open(sidecar)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return resource.ParseMetadata(f)
	})), nil
}

// DirSink writes resources into a directory tree.
type DirSink struct {
	fs billy.Filesystem
}

// NewDirSink returns a sink over fs.
func NewDirSink(fs billy.Filesystem) *DirSink {
	return &DirSink{fs: fs}
}

// Put writes the content and, when present, the metadata sidecar. A stale
// sidecar is removed when the resource has no metadata.
func (s *DirSink) Put(location string, res resource.Resource) error {
	name := filepath.FromSlash(location)
	data, err := res.ReadAll()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", location, err)
		}
	}
	if err := util.WriteFile(s.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", location, err)
	}

	sidecar := name + SidecarExt
	md, err := res.Metadata()
	if err != nil {
		return fmt.Errorf("metadata of %s: %w", location, err)
	}
	if md == nil {
		if err := s.fs.Remove(sidecar); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale sidecar of %s: %w", location, err)
		}
		return nil
	}
	text, err := md.Bytes()
	if err != nil {
		return fmt.Errorf("metadata of %s: %w", location, err)
	}
	if err := util.WriteFile(s.fs, sidecar, text, 0o644); err != nil {
		return fmt.Errorf("write sidecar of %s: %w", location, err)
	}
	return nil
}
