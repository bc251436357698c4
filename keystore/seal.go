package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// KDFParams are the Argon2id settings a seed is sealed with. They are stored
// in the sealed blob, so Open needs only the password.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDF costs about 64 MiB and a fraction of a second per open.
var DefaultKDF = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

const (
	sealVersion = 1
	headerLen   = 1 + 4 + 4 + 1 // version, time, memory, threads
	saltLen     = 16
	checksumLen = 4
	keyLen      = 32
)

// Seal encrypts seed under password with Argon2id and AES-256-GCM.
//
// Layout: header || salt(16) || nonce(12) || GCM(seed || sha256(seed)[:4]).
// The header is authenticated as additional data.
func Seal(seed []byte, password string, p KDFParams) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	header := make([]byte, headerLen)
	header[0] = sealVersion
	binary.BigEndian.PutUint32(header[1:5], p.Time)
	binary.BigEndian.PutUint32(header[5:9], p.Memory)
	header[9] = p.Threads

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keystore: generate salt: %w", err)
	}
	gcm, err := newGCM(password, salt, p)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keystore: generate nonce: %w", err)
	}

	sum := sha256.Sum256(seed)
	plaintext := append(append([]byte(nil), seed...), sum[:checksumLen]...)

	out := make([]byte, 0, headerLen+saltLen+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Open reverses Seal.
func Open(sealed []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(sealed) < headerLen+saltLen || sealed[0] != sealVersion {
		return nil, ErrDecryptionFailed
	}
	header := sealed[:headerLen]
	p := KDFParams{
		Time:    binary.BigEndian.Uint32(header[1:5]),
		Memory:  binary.BigEndian.Uint32(header[5:9]),
		Threads: header[9],
	}
	if p.Time == 0 || p.Threads == 0 {
		return nil, ErrDecryptionFailed
	}
	salt := sealed[headerLen : headerLen+saltLen]

	gcm, err := newGCM(password, salt, p)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	rest := sealed[headerLen+saltLen:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead()+checksumLen {
		return nil, ErrDecryptionFailed
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	seed, stored := plaintext[:len(plaintext)-checksumLen], plaintext[len(plaintext)-checksumLen:]
	sum := sha256.Sum256(seed)
	if subtle.ConstantTimeCompare(stored, sum[:checksumLen]) != 1 {
		return nil, ErrChecksumMismatch
	}
	return seed, nil
}

func newGCM(password string, salt []byte, p KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, keyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: GCM: %w", err)
	}
	return gcm, nil
}

// WriteFile seals seed into a new file at path, readable by the owner only.
// An existing file is never overwritten.
func WriteFile(path string, seed []byte, password string, p KDFParams) error {
	sealed, err := Seal(seed, password, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("keystore: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err != nil {
		return fmt.Errorf("keystore: create %s: %w", path, err)
	}
	if _, err := f.Write(sealed); err != nil {
		_ = f.Close()
		return fmt.Errorf("keystore: write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile opens the seed sealed in path.
func ReadFile(path, password string) ([]byte, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	return Open(sealed, password)
}
