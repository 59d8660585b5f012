package snapshot

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
)

// FileStore keeps each snapshot as a JSON file in one directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory snapshots are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes state to <dir>/<name>.json, replacing any earlier snapshot
// with the same name.
func (s *FileStore) Save(ctx context.Context, name string, state []atom.Dehydrated) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref, err := refName(name)
	if err != nil {
		return "", err
	}
	data, err := encode(ref, state)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.New("A200").WithDetailf("could not create %s", s.dir).Wrap(err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return "", errors.New("A200").Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.New("A200").Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.New("A200").Wrap(err)
	}
	if err := os.Rename(tmp.Name(), s.path(ref)); err != nil {
		return "", errors.New("A200").Wrap(err)
	}
	return ref, nil
}

// Load reads the snapshot saved under ref.
func (s *FileStore) Load(ctx context.Context, ref string) ([]atom.Dehydrated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := refName(ref)
	if err != nil || ref == "" {
		return nil, errors.New("A201").WithDetailf("invalid snapshot reference %q", ref)
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("A201").WithDetailf("no snapshot %q in %s", name, s.dir).Wrap(err)
		}
		return nil, errors.New("A202").Wrap(err)
	}
	return decode(name, data)
}

func (s *FileStore) path(ref string) string {
	return filepath.Join(s.dir, ref+".json")
}
