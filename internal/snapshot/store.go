// Package snapshot persists dehydrated registry state so a later run can
// start from it.
package snapshot

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/atom/internal/config"
	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
)

// Store saves and loads snapshots. Save returns the reference Load
// accepts.
type Store interface {
	Save(ctx context.Context, name string, state []atom.Dehydrated) (string, error)
	Load(ctx context.Context, ref string) ([]atom.Dehydrated, error)
}

const formatVersion = 1

// document is the stored form of a snapshot.
type document struct {
	Version int               `json:"version"`
	Name    string            `json:"name"`
	SavedAt time.Time         `json:"savedAt"`
	Atoms   []atom.Dehydrated `json:"atoms"`
}

// refName returns the reference for name, generating one when name is
// empty. Names may not contain path separators.
func refName(name string) (string, error) {
	if name == "" {
		return uuid.NewString(), nil
	}
	name = strings.TrimSuffix(name, ".json")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.New("A200").WithDetailf("invalid snapshot name %q", name)
	}
	return name, nil
}

func encode(name string, state []atom.Dehydrated) ([]byte, error) {
	if state == nil {
		state = []atom.Dehydrated{}
	}
	data, err := json.MarshalIndent(document{
		Version: formatVersion,
		Name:    name,
		SavedAt: time.Now().UTC(),
		Atoms:   state,
	}, "", "  ")
	if err != nil {
		return nil, errors.New("A200").Wrap(err)
	}
	return append(data, '\n'), nil
}

func decode(ref string, data []byte) ([]atom.Dehydrated, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.New("A202").WithDetailf("snapshot %q", ref).Wrap(err)
	}
	if doc.Version != formatVersion {
		return nil, errors.New("A202").WithDetailf("snapshot %q has version %d, want %d", ref, doc.Version, formatVersion)
	}
	for i, d := range doc.Atoms {
		if d.Key == "" {
			return nil, errors.New("A202").WithDetailf("snapshot %q: atom %d has no key", ref, i)
		}
	}
	return doc.Atoms, nil
}

// Open returns the store configured in cfg.
func Open(cfg *config.Config) (Store, error) {
	switch sc := cfg.Snapshot; {
	case sc.Dir != "":
		return NewFileStore(cfg.SnapshotDir()), nil
	case sc.S3.Bucket != "":
		return NewS3Store(NewS3Client(sc.S3), sc.S3.Bucket, sc.S3.Prefix), nil
	}
	return nil, errors.New("A203")
}
