// Package archive keeps signed split receipts on disk, addressed by the
// digest their signature commits to.
package archive

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bitfsorg/pledgesplit-go/receipt"
)

// DigestSize is the length of a receipt digest (SHA256).
const DigestSize = 32

// maxReceiptSize caps the decompressed size of an archived receipt.
const maxReceiptSize = 4 << 20

// Archive is a content-addressed receipt store on the local filesystem.
// Files live at {baseDir}/{hex(digest[:1])}/{hex(digest)}.json.gz; the first
// byte shards the directory.
type Archive struct {
	baseDir string
	mu      sync.RWMutex
}

// New opens an archive rooted at baseDir, creating it if needed.
func New(baseDir string) (*Archive, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// DigestPath returns where the receipt with digest is stored under baseDir.
func DigestPath(baseDir string, digest []byte) string {
	h := hex.EncodeToString(digest)
	return filepath.Join(baseDir, h[:2], h+".json.gz")
}

func validateDigest(digest []byte) error {
	if len(digest) != DigestSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidDigest, len(digest))
	}
	return nil
}

// ParseDigest decodes a hex digest.
func ParseDigest(s string) ([]byte, error) {
	d, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	if err := validateDigest(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Put archives r and returns its digest. Archiving the same receipt twice is
// a no-op.
func (a *Archive) Put(r *receipt.Receipt) ([]byte, error) {
	digest, err := r.Digest()
	if err != nil {
		return nil, err
	}
	data, err := encode(r)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	path := DigestPath(a.baseDir, digest)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	// Write then rename so readers never see a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return digest, nil
}

// Get loads the receipt archived under digest. The stored receipt must hash
// back to digest.
func (a *Archive) Get(digest []byte) (*receipt.Receipt, error) {
	if err := validateDigest(digest); err != nil {
		return nil, err
	}

	a.mu.RLock()
	data, err := os.ReadFile(DigestPath(a.baseDir, digest))
	a.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	r, err := decode(data)
	if err != nil {
		return nil, err
	}
	got, err := r.Digest()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !bytes.Equal(got, digest) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return r, nil
}

// Has reports whether a receipt is archived under digest.
func (a *Archive) Has(digest []byte) (bool, error) {
	if err := validateDigest(digest); err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, err := os.Stat(DigestPath(a.baseDir, digest)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// List returns the digests of every archived receipt. Files that do not
// look like archive entries are skipped.
func (a *Archive) List() ([][]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	shards, err := os.ReadDir(a.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var out [][]byte
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(a.baseDir, shard.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name, ok := strings.CutSuffix(f.Name(), ".json.gz")
			if f.IsDir() || !ok {
				continue
			}
			d, err := hex.DecodeString(name)
			if err != nil || len(d) != DigestSize {
				continue
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func encode(r *receipt.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if err := json.NewEncoder(w).Encode(r); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*receipt.Receipt, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxReceiptSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(raw) > maxReceiptSize {
		return nil, fmt.Errorf("%w: receipt too large", ErrCorrupt)
	}

	var r receipt.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &r, nil
}
