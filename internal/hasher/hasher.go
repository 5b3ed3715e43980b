// Package hasher computes content digests for individual files.
//
// Calculate is the single-file hashing operation driven by the worker's scan
// loop. It is pure given a size limit: no writes, no retained state, and the
// same byte content always yields the same digests on every platform.
//
// Failures are classified into a closed taxonomy (see Failure) so the caller
// can apply a uniform log-level policy without inspecting raw OS errors.
package hasher

import (
	"crypto/md5" // #nosec G501 -- used for file integrity verification only
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// DefaultChunkSize is the read buffer size used when the caller passes a
// non-positive chunk size.
const DefaultChunkSize = 64 * 1024

// Result is the digest record for one successfully hashed file.
// Immutable once constructed; produced at most once per (path, pass).
type Result struct {
	Path     string `json:"path"`
	SHA256   string `json:"sha256"`
	MD5      string `json:"md5"`
	FileSize int64  `json:"file_size"`
}

// Calculate hashes the file at path, honoring maxFileSize.
//
// Checks run in order, each short-circuiting to a classified *Failure:
// missing path, directory, oversized (by metadata, strictly before opening
// the file), then open errors. The content is read in chunkSize blocks
// feeding SHA-256 and MD5 simultaneously; FileSize is the byte count
// actually read. A file that changes size mid-read is not an error as long
// as the read itself succeeds.
func Calculate(path string, maxFileSize, chunkSize int64) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, Classify(err, path)
	}
	if info.IsDir() {
		return nil, &Failure{Kind: KindIsDirectory, Path: path}
	}
	// Size check by metadata only: oversized files must never be opened.
	if info.Size() > maxFileSize {
		return nil, &Failure{Kind: KindTooLarge, Path: path}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Classify(err, path)
	}
	defer func() { _ = f.Close() }()

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	shaSum := sha256.New()
	md5Sum := md5.New() // #nosec G401 -- used for file integrity verification only
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(io.MultiWriter(shaSum, md5Sum), f, buf)
	if err != nil {
		return nil, Classify(err, path)
	}

	return &Result{
		Path:     path,
		SHA256:   hex.EncodeToString(shaSum.Sum(nil)),
		MD5:      hex.EncodeToString(md5Sum.Sum(nil)),
		FileSize: n,
	}, nil
}
