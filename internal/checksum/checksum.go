package checksum

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported digest function.
type Algorithm string

const (
	// SHA256 is the default algorithm for bare hex checksums.
	SHA256 Algorithm = "sha256"
	// SHA512 matches the digests used by release manifests.
	SHA512 Algorithm = "sha512"
	// BLAKE3 is a fast alternative for large artifacts.
	BLAKE3 Algorithm = "blake3"
)

// digestSizes maps each algorithm to its digest length in bytes.
//
//nolint:gochecknoglobals // Lookup table.
var digestSizes = map[Algorithm]int{
	SHA256: sha256.Size,
	SHA512: sha512.Size,
	BLAKE3: 32,
}

var (
	errEmptyChecksum       = errors.New("checksum is empty")
	errUnknownAlgorithm    = errors.New("unknown checksum algorithm")
	errInvalidDigestLength = errors.New("invalid digest length")
)

// Digest is a computed or expected checksum.
type Digest struct {
	// Algorithm is the digest function.
	Algorithm Algorithm
	// Sum is the raw digest.
	Sum []byte
}

// Parse decodes an expected checksum.
// Bare hex is read as SHA-256, or SHA-512 when it has the matching length.
func Parse(value string) (Digest, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Digest{}, errEmptyChecksum
	}

	algorithm := SHA256
	encoded := value

	if name, rest, found := strings.Cut(value, ":"); found {
		algorithm = Algorithm(strings.ToLower(strings.TrimSpace(name)))
		encoded = strings.TrimSpace(rest)
	} else if len(value) == hex.EncodedLen(sha512.Size) {
		algorithm = SHA512
	}

	size, ok := digestSizes[algorithm]
	if !ok {
		return Digest{}, fmt.Errorf("%w: %q", errUnknownAlgorithm, algorithm)
	}

	sum, err := hex.DecodeString(strings.ToLower(encoded))
	if err != nil {
		return Digest{}, fmt.Errorf("decode %s checksum: %w", algorithm, err)
	}

	if len(sum) != size {
		return Digest{}, fmt.Errorf("%s checksum is %d bytes, want %d: %w",
			algorithm, len(sum), size, errInvalidDigestLength)
	}

	return Digest{Algorithm: algorithm, Sum: sum}, nil
}

// String renders the digest as "algorithm:hex".
func (d Digest) String() string {
	return string(d.Algorithm) + ":" + hex.EncodeToString(d.Sum)
}

// Equal reports whether two digests use the same algorithm and sum.
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && bytes.Equal(d.Sum, other.Sum)
}

// CryptoHash returns the crypto.Hash of the algorithm when the standard library provides one.
func (a Algorithm) CryptoHash() (crypto.Hash, bool) {
	switch a {
	case SHA256:
		return crypto.SHA256, true
	case SHA512:
		return crypto.SHA512, true
	default:
		return 0, false
	}
}

// New returns a fresh hasher for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownAlgorithm, a)
	}
}

// Reader digests everything read from r.
func Reader(algorithm Algorithm, r io.Reader) (Digest, error) {
	hasher, err := algorithm.New()
	if err != nil {
		return Digest{}, err
	}

	if _, err = io.Copy(hasher, r); err != nil {
		return Digest{}, fmt.Errorf("calculate checksum: %w", err)
	}

	return Digest{Algorithm: algorithm, Sum: hasher.Sum(nil)}, nil
}

// File digests the file at path.
func File(algorithm Algorithm, path string) (Digest, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Digest{}, err
	}

	defer func() {
		_ = file.Close()
	}()

	return Reader(algorithm, file)
}

// VerifyFile digests the file with the expected algorithm and compares the result.
// It returns the computed digest so callers can report it.
func VerifyFile(path string, expected Digest) (Digest, bool, error) {
	actual, err := File(expected.Algorithm, path)
	if err != nil {
		return Digest{}, false, err
	}

	return actual, actual.Equal(expected), nil
}
