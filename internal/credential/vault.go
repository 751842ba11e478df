package credential

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const vaultFormatVersion = 1

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted token file")

// sealedToken is the on-disk JSON form of a sealed token.
type sealedToken struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// Vault stores one access token encrypted under a passphrase.
type Vault struct {
	Path string

	// scrypt cost parameters; zero means the defaults.
	N, R, P int
}

// NewVault returns a vault backed by the file at path.
func NewVault(path string) *Vault {
	return &Vault{Path: path}
}

// Exists reports whether a sealed token is present.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.Path)
	return err == nil
}

// Seal encrypts token and writes it to the vault file.
func (v *Vault) Seal(passphrase, token string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required")
	}
	n, r, p := v.params()

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], n, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; the key is unique per salt
	ct := aead.Seal(nil, nonce[:], []byte(token), salt[:])

	data, err := json.Marshal(sealedToken{V: vaultFormatVersion, Salt: salt[:], N: n, R: r, P: p, Cipher: ct})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.Path), 0o700); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	return os.WriteFile(v.Path, data, 0o600)
}

// Open decrypts the sealed token.
func (v *Vault) Open(passphrase string) (string, error) {
	data, err := os.ReadFile(v.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	var st sealedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("parse token file: %w", err)
	}
	if st.V > vaultFormatVersion {
		return "", fmt.Errorf("unsupported token file version %d", st.V)
	}

	key, err := scrypt.Key([]byte(passphrase), st.Salt, st.N, st.R, st.P, chacha20poly1305.KeySize)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], st.Cipher, st.Salt)
	if err != nil {
		return "", ErrWrongPassphrase
	}
	return string(pt), nil
}

// Clear removes the vault file. A missing file is not an error.
func (v *Vault) Clear() error {
	if err := os.Remove(v.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (v *Vault) params() (n, r, p int) {
	n, r, p = 1<<15, 8, 1
	if v.N > 0 {
		n = v.N
	}
	if v.R > 0 {
		r = v.R
	}
	if v.P > 0 {
		p = v.P
	}
	return n, r, p
}
