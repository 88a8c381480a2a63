package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionKeySize = 32
	saltSize          = 16
	nonceSize         = 12
	pbkdf2Iterations  = 100000
)

// sealedToken is the on-disk envelope of an encrypted token file.
type sealedToken struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Version    int    `json:"version"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, encryptionKeySize, sha256.New)
}

// sealTokenFile encrypts a serialized token with AES-256-GCM under a
// key derived from the passphrase.
func sealTokenFile(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := sealedToken{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
		Version:    1,
	}
	return json.MarshalIndent(sealed, "", "  ")
}

// openTokenFile decrypts a sealed token file.
func openTokenFile(data []byte, passphrase string) ([]byte, error) {
	var sealed sealedToken
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("parsing sealed token: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(sealed.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(sealed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting token file: %w", err)
	}
	return plaintext, nil
}

// isSealed reports whether file content is an encrypted envelope
// rather than a plain token. Plain token files written before a
// passphrase was configured still load.
func isSealed(data []byte) bool {
	var sealed sealedToken
	if err := json.Unmarshal(data, &sealed); err != nil {
		return false
	}
	return sealed.Ciphertext != ""
}
