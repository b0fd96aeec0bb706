package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// The store is append-only: objects are never mutated after creation.
// Writes are idempotent and safe under concurrent writers, since the
// digest fully determines the content being written.
type Store struct {
	root             string
	compression      bool
	compressionLevel int
}

// StoreOption adjusts store behavior.
type StoreOption func(*Store)

// WithCompression enables or disables transparent zstd compression of
// stored envelopes. Level follows zstd speed presets (1 fastest,
// 2 default, 3 better compression).
func WithCompression(enabled bool, level int) StoreOption {
	return func(s *Store) {
		s.compression = enabled
		s.compressionLevel = level
	}
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write. Compression is on by
// default.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, compression: true, compressionLevel: 2}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(h) {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. The logical
// format is the envelope "type len\0content"; the on-disk bytes may be
// a zstd frame of that envelope. Writing an already-present object is a
// no-op. Writes are atomic: data goes to a temp file which is then
// renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	envelope := fmt.Sprintf("%s %d\x00", objType, len(data))
	raw := append([]byte(envelope), data...)

	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	if s.compression {
		compressed, err := compressEnvelope(raw, s.compressionLevel)
		if err != nil {
			return "", fmt.Errorf("object write compress: %w", err)
		}
		raw = compressed
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	dest := s.objectPath(h)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and original
// content. A missing object reports ErrNotFound; a malformed envelope
// reports ErrCorrupt.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(h) {
		return "", nil, &NotFoundError{Hash: h}
	}
	stored, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, &NotFoundError{Hash: h}
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	raw, err := decompressEnvelope(stored)
	if err != nil {
		return "", nil, &CorruptObjectError{Hash: h, Reason: err.Error()}
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, &CorruptObjectError{Hash: h, Reason: "invalid envelope (no NUL)"}
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, &CorruptObjectError{Hash: h, Reason: fmt.Sprintf("invalid header %q", header)}
	}
	objType := ObjectType(parts[0])
	switch objType {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
	default:
		return "", nil, &CorruptObjectError{Hash: h, Reason: fmt.Sprintf("unknown type tag %q", parts[0])}
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, &CorruptObjectError{Hash: h, Type: objType, Reason: fmt.Sprintf("invalid length %q", parts[1])}
	}
	if len(content) != length {
		return "", nil, &CorruptObjectError{
			Hash: h,
			Type: objType,
			Reason: fmt.Sprintf("length mismatch (header=%d, actual=%d)", length, len(content)),
		}
	}

	return objType, content, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, attachHash(err, h)
	}
	return tr, nil
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, attachHash(err, h)
	}
	return c, nil
}

// WriteTag serializes and stores a TagObj.
func (s *Store) WriteTag(t *TagObj) (Hash, error) {
	return s.Write(TypeTag, MarshalTag(t))
}

// ReadTag reads and deserializes a TagObj.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	data, err := s.readTyped(h, TypeTag)
	if err != nil {
		return nil, err
	}
	t, err := UnmarshalTag(data)
	if err != nil {
		return nil, attachHash(err, h)
	}
	return t, nil
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, &TypeMismatchError{Hash: h, Got: objType, Want: want}
	}
	return data, nil
}

func attachHash(err error, h Hash) error {
	var ce *CorruptObjectError
	if errors.As(err, &ce) && ce.Hash == "" {
		ce.Hash = h
	}
	return err
}
