package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"easel/internal/services"
)

// Ref is an opaque, stable reference to a stored blob. It is derived from the
// content, so byte-identical payloads converge on the same reference.
type Ref string

// Info describes a stored blob.
type Info struct {
	Ref         Ref    `json:"ref"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Store is a content-addressed blob store on the local filesystem. Writes go
// through a scratch file and rename, so a partially written blob is never
// visible to Get.
type Store struct {
	root string
}

// Open prepares the blob directory.
func Open(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Put stores the payload and returns its reference. Safe for concurrent use;
// concurrent Puts of identical content settle on the same reference without
// corrupting either caller's view.
func (s *Store) Put(data []byte, contentType string) (Ref, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}

	sum := sha256.Sum256(data)
	ref := Ref(hex.EncodeToString(sum[:]))

	dataPath := s.dataPath(ref)
	if _, err := os.Stat(dataPath); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return "", fmt.Errorf("create blob shard: %w", err)
	}

	scratch := filepath.Join(s.root, "tmp", uuid.NewString())
	if err := os.WriteFile(scratch, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob scratch: %w", err)
	}
	if err := os.Rename(scratch, dataPath); err != nil {
		_ = os.Remove(scratch)
		// A concurrent Put may have landed the same content first.
		if _, statErr := os.Stat(dataPath); statErr == nil {
			return ref, s.writeInfo(ref, contentType, int64(len(data)))
		}
		return "", fmt.Errorf("commit blob: %w", err)
	}

	if err := s.writeInfo(ref, contentType, int64(len(data))); err != nil {
		return "", err
	}
	return ref, nil
}

// Get returns the stored bytes for a reference.
func (s *Store) Get(ref Ref) ([]byte, error) {
	data, err := os.ReadFile(s.dataPath(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "blobstore", "get", string(ref), nil)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Stat returns blob metadata without reading the payload.
func (s *Store) Stat(ref Ref) (Info, error) {
	data, err := os.ReadFile(s.infoPath(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, services.Wrap(services.ErrNotFound, "blobstore", "stat", string(ref), nil)
		}
		return Info{}, fmt.Errorf("read blob info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("decode blob info: %w", err)
	}
	return info, nil
}

// Delete removes a blob. Best effort: a missing blob is not an error. Callers
// own the referential-integrity obligation — the ledger must confirm no
// generation record still holds the reference.
func (s *Store) Delete(ref Ref) error {
	if err := os.Remove(s.dataPath(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := os.Remove(s.infoPath(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob info: %w", err)
	}
	return nil
}

func (s *Store) writeInfo(ref Ref, contentType string, size int64) error {
	info := Info{Ref: ref, ContentType: contentType, Size: size}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode blob info: %w", err)
	}
	scratch := filepath.Join(s.root, "tmp", uuid.NewString())
	if err := os.WriteFile(scratch, data, 0o644); err != nil {
		return fmt.Errorf("write blob info: %w", err)
	}
	if err := os.Rename(scratch, s.infoPath(ref)); err != nil {
		_ = os.Remove(scratch)
		return fmt.Errorf("commit blob info: %w", err)
	}
	return nil
}

func (s *Store) dataPath(ref Ref) string {
	return filepath.Join(s.shardDir(ref), string(ref))
}

func (s *Store) infoPath(ref Ref) string {
	return filepath.Join(s.shardDir(ref), string(ref)+".json")
}

func (s *Store) shardDir(ref Ref) string {
	shard := "00"
	if len(ref) >= 2 {
		shard = string(ref[:2])
	}
	return filepath.Join(s.root, shard)
}
