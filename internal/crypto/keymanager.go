// Package crypto manages the trading wallets' private keys: encrypted
// key files on disk and typed loaders for the EVM and Solana signers.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-key JSON schema version.
	currentVersion = 1
)

// encryptedKeyJSON is the on-disk format for an encrypted private key.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// KeyConfig carries the information the loaders need to resolve a private
// key. Populate the fields from environment variables or a config file.
type KeyConfig struct {
	// RawPrivateKey is the key material inline: hex (with or without 0x) for
	// EVM wallets, base58 for Solana wallets. If non-empty it wins.
	RawPrivateKey string

	// EncryptedKeyPath is the path to a JSON file produced by EncryptKey.
	EncryptedKeyPath string

	// KeyPassword is the password used to decrypt the file at EncryptedKeyPath.
	KeyPassword string
}

// EncryptKey encrypts raw private key bytes with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated encryption.
// EVM secp256k1 keys are 32 bytes, Solana ed25519 keys 64.
func EncryptKey(keyBytes []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if len(keyBytes) != 32 && len(keyBytes) != 64 {
		return nil, fmt.Errorf("crypto: expected a 32- or 64-byte key, got %d bytes", len(keyBytes))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, keyBytes, nil)

	out := encryptedKeyJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKey decrypts a JSON blob produced by EncryptKey, returning the raw
// key bytes.
func DecryptKey(encryptedJSON []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored encryptedKeyJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing encrypted key JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	return plaintext, nil
}

// EthereumKey resolves the EVM wallet key.
//
// Resolution order:
//  1. RawPrivateKey as hex (stripping an optional 0x prefix).
//  2. EncryptedKeyPath decrypted with KeyPassword.
func EthereumKey(cfg KeyConfig) (*ecdsa.PrivateKey, error) {
	if cfg.RawPrivateKey != "" {
		return ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.RawPrivateKey, "0x"))
	}
	raw, err := loadEncrypted(cfg)
	if err != nil {
		return nil, err
	}
	return ethcrypto.ToECDSA(raw)
}

// SolanaKey resolves the Solana wallet key.
//
// Resolution order:
//  1. RawPrivateKey as base58.
//  2. EncryptedKeyPath decrypted with KeyPassword.
func SolanaKey(cfg KeyConfig) (solana.PrivateKey, error) {
	if cfg.RawPrivateKey != "" {
		key, err := solana.PrivateKeyFromBase58(cfg.RawPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("crypto: RawPrivateKey is not valid base58: %w", err)
		}
		return key, nil
	}
	raw, err := loadEncrypted(cfg)
	if err != nil {
		return nil, err
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("crypto: expected a 64-byte ed25519 key, got %d bytes", len(raw))
	}
	return solana.PrivateKey(raw), nil
}

func loadEncrypted(cfg KeyConfig) ([]byte, error) {
	if cfg.EncryptedKeyPath == "" {
		return nil, errors.New("crypto: no private key source configured (set RawPrivateKey or EncryptedKeyPath)")
	}
	data, err := os.ReadFile(cfg.EncryptedKeyPath)
	if err != nil {
		return nil, fmt.Errorf("crypto: reading encrypted key file: %w", err)
	}
	return DecryptKey(data, cfg.KeyPassword)
}
