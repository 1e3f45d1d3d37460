package crypto

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, size := range []int{32, 64} {
		key := make([]byte, size)
		if _, err := rand.Read(key); err != nil {
			t.Fatalf("rand: %v", err)
		}

		blob, err := EncryptKey(key, "hunter2")
		if err != nil {
			t.Fatalf("EncryptKey(%d bytes): %v", size, err)
		}
		got, err := DecryptKey(blob, "hunter2")
		if err != nil {
			t.Fatalf("DecryptKey(%d bytes): %v", size, err)
		}
		if !bytes.Equal(got, key) {
			t.Fatalf("round trip mismatch for %d-byte key", size)
		}
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	key := make([]byte, 32)
	blob, err := EncryptKey(key, "correct")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("wrong password must fail")
	}
}

func TestEncryptRejectsOddKeySizes(t *testing.T) {
	if _, err := EncryptKey(make([]byte, 16), "pw"); err == nil {
		t.Fatal("16-byte key must be rejected")
	}
}

func TestEthereumKeyFromRawHex(t *testing.T) {
	cfg := KeyConfig{RawPrivateKey: "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"}
	key, err := EthereumKey(cfg)
	if err != nil {
		t.Fatalf("EthereumKey: %v", err)
	}
	if key == nil {
		t.Fatal("nil key")
	}
}

func TestEthereumKeyFromEncryptedFile(t *testing.T) {
	raw := make([]byte, 32)
	raw[31] = 1
	blob, err := EncryptKey(raw, "pw")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	key, err := EthereumKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("EthereumKey: %v", err)
	}
	if key == nil {
		t.Fatal("nil key")
	}
}

func TestSolanaKeyFromEncryptedFile(t *testing.T) {
	raw := make([]byte, 64)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}
	blob, err := EncryptKey(raw, "pw")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	key, err := SolanaKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("SolanaKey: %v", err)
	}
	if !bytes.Equal(key, raw) {
		t.Fatal("key bytes mismatch")
	}
}

func TestNoKeySourceConfigured(t *testing.T) {
	if _, err := EthereumKey(KeyConfig{}); err == nil {
		t.Fatal("empty config must fail")
	}
}
