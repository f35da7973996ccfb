package keyring

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"mochifi/internal/domain"
)

// Deterministic derives addresses by hashing the mnemonic. It backs dev mode
// (with the fake ledger) and tests, where no real chain verifies signatures.
// Derive(Generate().Mnemonic) always reproduces the same address, which is
// the only property the session restore path depends on.
type Deterministic struct{}

func (Deterministic) Generate() (domain.Key, error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return domain.Key{}, fmt.Errorf("read entropy: %w", err)
	}
	words := make([]string, 0, 8)
	for i := 0; i+4 <= len(entropy); i += 4 {
		words = append(words, hex.EncodeToString(entropy[i:i+4]))
	}
	return Deterministic{}.Derive(strings.Join(words, " "))
}

func (Deterministic) Derive(mnemonic string) (domain.Key, error) {
	if strings.TrimSpace(mnemonic) == "" {
		return domain.Key{}, fmt.Errorf("mnemonic is empty")
	}
	sum := sha256.Sum256([]byte(mnemonic))
	return domain.Key{
		Mnemonic: mnemonic,
		Address:  "terra1" + hex.EncodeToString(sum[:16]),
	}, nil
}
