package filesystem

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/mandelsoft/vergraph/pkg/bucket"
	"github.com/mandelsoft/vergraph/pkg/utils"
)

var REALM = logging.DefineRealm("vergraph/bucket/filesystem", "filesystem based bucket store")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

// Store keeps every entry in a file named by the hash of its id,
// sharded by the first two characters of the hash.
// Compressed entries use the suffix .zst.
type Store struct {
	lock     sync.RWMutex
	path     string
	fs       vfs.FileSystem
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

var _ bucket.Store = (*Store)(nil)

func New(path string, compress bool, fss ...vfs.FileSystem) (*Store, error) {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)

	err := fs.MkdirAll(path, 0o700)
	if err != nil && !errors.Is(err, vfs.ErrExist) {
		return nil, err
	}
	s := &Store{path: path, fs: fs, compress: compress}
	if compress {
		s.encoder, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
	}
	// the decoder is always required for entries written with compression
	s.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	log.Info("opened bucket store {{path}}", "path", path, "compress", compress)
	return s, nil
}

func (s *Store) file(id string, compressed bool) string {
	h := utils.HashData(id)
	name := h
	if compressed {
		name += ".zst"
	}
	return filepath.Join(s.path, h[:2], name)
}

func (s *Store) Put(ctx context.Context, id string, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	path := s.file(id, s.compress)
	if s.compress {
		data = s.encoder.EncodeAll(data, nil)
	}
	err := s.fs.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return err
	}
	err = vfs.WriteFile(s.fs, path, data, 0o600)
	if err != nil {
		return err
	}
	// drop a stale entry written with the other setting
	err = s.fs.Remove(s.file(id, !s.compress))
	if err != nil && !errors.Is(err, vfs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, compressed := range []bool{s.compress, !s.compress} {
		data, err := vfs.ReadFile(s.fs, s.file(id, compressed))
		if err != nil {
			if errors.Is(err, vfs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if compressed {
			data, err = s.decoder.DecodeAll(data, nil)
			if err != nil {
				return nil, fmt.Errorf("corrupted bucket entry %q: %w", id, err)
			}
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", bucket.ErrNotFound, id)
}

func (s *Store) Reset(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	entries, err := vfs.ReadDir(s.fs, s.path)
	if err != nil {
		if errors.Is(err, vfs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		err := s.fs.RemoveAll(filepath.Join(s.path, e.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}
