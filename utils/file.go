package utils

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	ethcmm "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

// ReadDataFromFile reads the non-empty lines of a file, trimmed of surrounding whitespace.
func ReadDataFromFile(filepath string) ([]string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filepath, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filepath, err)
	}
	return lines, nil
}

// GetEthAddressFromPK converts an ECDSA private key to an Ethereum address
func GetEthAddressFromPK(privateKey *ecdsa.PrivateKey) (ethcmm.Address, error) {
	pubkeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return ethcmm.Address{}, errors.New("convert into pubkey failed")
	}
	return crypto.PubkeyToAddress(*pubkeyECDSA), nil
}

// KeyRing holds the wallets of one run in file order. Keys[i] signs for Addresses[i].
type KeyRing struct {
	Keys      []*ecdsa.PrivateKey
	Addresses []ethcmm.Address
}

// Len returns the number of wallets in the ring.
func (k *KeyRing) Len() int {
	return len(k.Addresses)
}

// IsHexKey reports whether s, after an optional 0x prefix, is exactly 64 hex characters.
func IsHexKey(s string) bool {
	s = trimHexPrefix(s)
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// ParseKeys validates candidate private keys and derives their addresses.
// Malformed candidates and keys that fail derivation are logged by line number
// and skipped; key material is never logged.
func ParseKeys(lines []string, logger log.Logger) *KeyRing {
	ring := &KeyRing{}
	for i, line := range lines {
		if !IsHexKey(line) {
			logger.Warn("Skipping invalid private key", "line", i+1)
			continue
		}
		pk, err := crypto.HexToECDSA(trimHexPrefix(line))
		if err != nil {
			logger.Error("Failed to derive key", "line", i+1, "err", err)
			continue
		}
		addr, err := GetEthAddressFromPK(pk)
		if err != nil {
			logger.Error("Failed to derive address", "line", i+1, "err", err)
			continue
		}
		ring.Keys = append(ring.Keys, pk)
		ring.Addresses = append(ring.Addresses, addr)
		logger.Info("Added wallet", "index", ring.Len()-1, "address", addr)
	}
	return ring
}

// LoadKeyRing reads the key file and parses it. A missing file is an error.
func LoadKeyRing(filepath string, logger log.Logger) (*KeyRing, error) {
	lines, err := ReadDataFromFile(filepath)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded key file", "path", filepath, "candidates", len(lines))
	return ParseKeys(lines, logger), nil
}
