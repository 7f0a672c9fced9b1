// Package filestore implements the File Store (C1, §4.1): a content-
// addressed blob store keyed by storageKey, plus an index of FileEntry
// records keyed by id. The on-disk layout follows the file-backed backend
// named in §6: blobs under "storage/<sha256-prefixed>", the index as a
// JSONL log "files.jsonl", with atomic write-temp-then-rename writes.
// Width/height probing uses the standard image package plus
// golang.org/x/image's additional decoders (webp, bmp, tiff) so uploads in
// those formats still get populated Width/Height fields.
package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

// Store is the file store. The index is guarded by a single RWMutex:
// writers take the write lock and readers take the read lock.
type Store struct {
	Log zerolog.Logger

	root string // root dir containing storage/ and files.jsonl

	mu      sync.RWMutex
	entries map[chatid.ID]*domain.FileEntry
	// bySHA indexes (userID, sha256, category) -> entry id for dedup (§4.1).
	bySHA map[string]chatid.ID
}

// Open loads (or creates) a file store rooted at dir.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "storage"), 0o755); err != nil {
		return nil, &chaterrors.StorageError{Kind: "filestore.mkdir", Err: err}
	}
	s := &Store{
		Log:     log,
		root:    dir,
		entries: make(map[chatid.ID]*domain.FileEntry),
		bySHA:   make(map[string]chatid.ID),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) indexPath() string { return filepath.Join(s.root, "files.jsonl") }

func (s *Store) loadIndex() error {
	f, err := os.Open(s.indexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &chaterrors.StorageError{Kind: "filestore.index.open", Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	for {
		var e domain.FileEntry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return &chaterrors.StorageError{Kind: "filestore.index.decode", Err: err}
		}
		entry := e
		s.entries[entry.ID] = &entry
		s.bySHA[shaKey(entry.UserID, entry.SHA256, entry.Category)] = entry.ID
	}
	return nil
}

// persistIndex rewrites the whole index via write-temp-then-rename (§6
// atomicity contract). Called under s.mu held for write.
func (s *Store) persistIndex() error {
	tmp := s.indexPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &chaterrors.StorageError{Kind: "filestore.index.write", Err: err}
	}
	enc := json.NewEncoder(f)
	for _, e := range s.entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return &chaterrors.StorageError{Kind: "filestore.index.write", Err: err}
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &chaterrors.StorageError{Kind: "filestore.index.sync", Err: err}
	}
	if err := f.Close(); err != nil {
		return &chaterrors.StorageError{Kind: "filestore.index.close", Err: err}
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		return &chaterrors.StorageError{Kind: "filestore.index.rename", Err: err}
	}
	return nil
}

func shaKey(userID chatid.ID, sha256Hex string, category domain.FileCategory) string {
	return userID.String() + ":" + sha256Hex + ":" + string(category)
}

func blobPath(root, storageKey string) string {
	prefix := storageKey
	if len(prefix) >= 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(root, "storage", prefix, storageKey)
}

// Create computes buf's sha256 and either reuses an existing entry
// (dedup: same user, same hash, same category, source UPLOADED) by merging
// linkedTo, or writes a new blob and index row (§4.1).
func (s *Store) Create(buf []byte, origName, mime string, source domain.FileSource, category domain.FileCategory, userID chatid.ID, linkedTo []chatid.ID) (*domain.FileEntry, error) {
	sum := sha256.Sum256(buf)
	shaHex := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if source == domain.FileSourceUploaded {
		if existingID, ok := s.bySHA[shaKey(userID, shaHex, category)]; ok {
			existing := s.entries[existingID]
			for _, id := range linkedTo {
				if !existing.HasLink(id) {
					existing.LinkedTo = append(existing.LinkedTo, id)
				}
			}
			if err := s.persistIndex(); err != nil {
				return nil, err
			}
			cp := *existing
			return &cp, nil
		}
	}

	storageKey := shaHex
	path := blobPath(s.root, storageKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &chaterrors.StorageError{Kind: "filestore.blob.mkdir", Err: err}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeFileAtomic(path, buf); err != nil {
			return nil, &chaterrors.StorageError{Kind: "filestore.blob.write", Err: err}
		}
	}

	width, height := probeDimensions(buf)
	entry := &domain.FileEntry{
		ID:               chatid.New(),
		UserID:           userID,
		SHA256:           shaHex,
		OriginalFilename: origName,
		MimeType:         mime,
		Size:             int64(len(buf)),
		Width:            width,
		Height:           height,
		Category:         category,
		Source:           source,
		StorageKey:       storageKey,
		LinkedTo:         append([]chatid.ID{}, linkedTo...),
	}
	s.entries[entry.ID] = entry
	s.bySHA[shaKey(userID, shaHex, category)] = entry.ID

	// Index write failure after a successful blob write leaves an orphaned
	// blob, which a later SweepOrphans call reclaims (§4.1 failure model).
	if err := s.persistIndex(); err != nil {
		return nil, err
	}
	cp := *entry
	return &cp, nil
}

func writeFileAtomic(path string, buf []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func probeDimensions(buf []byte) (*int, *int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, nil
	}
	w, h := cfg.Width, cfg.Height
	return &w, &h
}

// Read returns id's blob bytes.
func (s *Store) Read(id chatid.ID) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &chaterrors.NotFound{Kind: "file", ID: id.String()}
	}
	path := blobPath(s.root, entry.StorageKey)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: "filestore.blob.read", Err: err}
	}
	return data, nil
}

// Get returns id's metadata entry.
func (s *Store) Get(id chatid.ID) (*domain.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, &chaterrors.NotFound{Kind: "file", ID: id.String()}
	}
	cp := *entry
	return &cp, nil
}

// Delete removes id's blob and index row, rejected (returns false, no side
// effects) when LinkedTo is nonempty (§4.1).
func (s *Store) Delete(id chatid.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false, &chaterrors.NotFound{Kind: "file", ID: id.String()}
	}
	if len(entry.LinkedTo) > 0 {
		return false, nil
	}
	delete(s.entries, id)
	delete(s.bySHA, shaKey(entry.UserID, entry.SHA256, entry.Category))
	if err := s.persistIndex(); err != nil {
		return false, err
	}
	_ = os.Remove(blobPath(s.root, entry.StorageKey))
	return true, nil
}

// AddLink idempotently adds entityID to id's LinkedTo set.
func (s *Store) AddLink(id, entityID chatid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return &chaterrors.NotFound{Kind: "file", ID: id.String()}
	}
	if !entry.HasLink(entityID) {
		entry.LinkedTo = append(entry.LinkedTo, entityID)
		return s.persistIndex()
	}
	return nil
}

// RemoveLink idempotently removes entityID from id's LinkedTo set. Does NOT
// auto-delete when the set becomes empty — explicit Delete is required,
// a deliberate policy choice that prevents racy loss during a transient
// unlink/relink (§4.1).
func (s *Store) RemoveLink(id, entityID chatid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return &chaterrors.NotFound{Kind: "file", ID: id.String()}
	}
	out := entry.LinkedTo[:0]
	for _, existing := range entry.LinkedTo {
		if existing != entityID {
			out = append(out, existing)
		}
	}
	entry.LinkedTo = out
	return s.persistIndex()
}

// SweepOrphans compares blob keys on disk against index entries and removes
// blobs with no corresponding FileEntry, reclaiming orphans left by a crash
// between blob write and index write (§4.1 failure model).
func (s *Store) SweepOrphans() (removed int, err error) {
	s.mu.RLock()
	known := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		known[e.StorageKey] = true
	}
	s.mu.RUnlock()

	storageRoot := filepath.Join(s.root, "storage")
	entriesOnDisk, readErr := os.ReadDir(storageRoot)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return 0, nil
		}
		return 0, &chaterrors.StorageError{Kind: "filestore.sweep", Err: readErr}
	}
	for _, prefixDir := range entriesOnDisk {
		if !prefixDir.IsDir() {
			continue
		}
		prefixPath := filepath.Join(storageRoot, prefixDir.Name())
		files, readErr := os.ReadDir(prefixPath)
		if readErr != nil {
			continue
		}
		for _, f := range files {
			if known[f.Name()] {
				continue
			}
			if rmErr := os.Remove(filepath.Join(prefixPath, f.Name())); rmErr == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		s.Log.Info().Int("removed", removed).Msg("file store GC swept orphaned blobs")
	}
	return removed, nil
}

// String renders an entry for debug logging without leaking blob contents.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("filestore(root=%s, entries=%d)", s.root, len(s.entries))
}
