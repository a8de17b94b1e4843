package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/gbcore"
	"github.com/hupe1980/gbcore/blobstore"
	"github.com/hupe1980/gbcore/types"
	"github.com/oklog/ulid/v2"
)

// DefaultPrefix is the blob name prefix under which snapshots are stored.
const DefaultPrefix = "snapshots/"

// ErrNoSnapshot is returned by Latest when no snapshot was committed.
var ErrNoSnapshot = errors.New("snapshot: no snapshot committed")

// Options configures Save and Load.
type Options struct {
	// Compression applied on Save. Load reads whatever the header says.
	Compression Compression
	// Prefix overrides DefaultPrefix.
	Prefix string
	// Types resolves user-defined types on Load.
	Types *types.Registry
	// NoCommit skips moving the CURRENT pointer on Save.
	NoCommit bool
}

func (o Options) prefix() string {
	if o.Prefix == "" {
		return DefaultPrefix
	}
	return o.Prefix
}

// Save finalizes m, writes it under a new time-ordered name and, unless
// opts.NoCommit is set, points CURRENT at it. Writes go through the
// runtime's IO limit.
func Save(ctx context.Context, store blobstore.BlobStore, m *gbcore.Matrix, opts Options) (string, error) {
	if err := m.Finalize(); err != nil {
		return "", err
	}
	e, err := m.Export()
	if err != nil {
		return "", err
	}
	data, err := Encode(e, opts.Compression)
	if err != nil {
		return "", err
	}

	name := opts.prefix() + ulid.Make().String()
	wb, err := store.Create(ctx, name)
	if err != nil {
		return "", fmt.Errorf("snapshot: create %s: %w", name, err)
	}
	w := m.Runtime().ThrottledWriter(ctx, wb)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = wb.Abort()
		return "", fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := wb.Sync(); err != nil {
		_ = wb.Abort()
		return "", fmt.Errorf("snapshot: sync %s: %w", name, err)
	}
	if err := wb.Close(); err != nil {
		return "", fmt.Errorf("snapshot: close %s: %w", name, err)
	}

	m.Runtime().Logger().Debug("snapshot saved",
		"matrix", m.ID(),
		"name", name,
		"bytes", len(data),
		"nvals", e.Nvals(),
	)
	if opts.NoCommit {
		return name, nil
	}
	if err := store.Put(ctx, blobstore.CurrentName, []byte(name)); err != nil {
		return "", fmt.Errorf("snapshot: commit %s: %w", name, err)
	}
	return name, nil
}

// Read decodes the named snapshot without importing it.
func Read(ctx context.Context, store blobstore.BlobStore, name string, reg *types.Registry) (*gbcore.Exported, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	return Decode(data, reg)
}

// Load reads the named snapshot into a new matrix owned by rt. Reads go
// through the runtime's IO limit.
func Load(ctx context.Context, rt *gbcore.Runtime, store blobstore.BlobStore, name string, opts Options) (*gbcore.Matrix, error) {
	raw, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	data, err := io.ReadAll(rt.ThrottledReader(ctx, bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	e, err := Decode(data, opts.Types)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	m, err := rt.Import(e)
	if err != nil {
		return nil, err
	}
	rt.Logger().Debug("snapshot loaded", "matrix", m.ID(), "name", name, "nvals", e.Nvals())
	return m, nil
}

// Latest returns the name CURRENT points at.
func Latest(ctx context.Context, store blobstore.BlobStore) (string, error) {
	data, err := blobstore.ReadAll(ctx, store, blobstore.CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoSnapshot
	}
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoSnapshot
	}
	return name, nil
}

// LoadLatest loads the snapshot CURRENT points at.
func LoadLatest(ctx context.Context, rt *gbcore.Runtime, store blobstore.BlobStore, opts Options) (*gbcore.Matrix, error) {
	name, err := Latest(ctx, store)
	if err != nil {
		return nil, err
	}
	return Load(ctx, rt, store, name, opts)
}

// List returns the snapshot names under the prefix, oldest first.
func List(ctx context.Context, store blobstore.BlobStore, opts Options) ([]string, error) {
	names, err := store.List(ctx, opts.prefix())
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if _, err := ulid.ParseStrict(strings.TrimPrefix(n, opts.prefix())); err == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// Prune deletes all but the newest keep snapshots. The snapshot CURRENT
// points at is never deleted. It returns the deleted names.
func Prune(ctx context.Context, store blobstore.BlobStore, keep int, opts Options) ([]string, error) {
	names, err := List(ctx, store, opts)
	if err != nil {
		return nil, err
	}
	current, err := Latest(ctx, store)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	var deleted []string
	for k := 0; k < len(names)-max(keep, 0); k++ {
		if names[k] == current {
			continue
		}
		if err := store.Delete(ctx, names[k]); err != nil {
			return deleted, fmt.Errorf("snapshot: delete %s: %w", names[k], err)
		}
		deleted = append(deleted, names[k])
	}
	return deleted, nil
}
