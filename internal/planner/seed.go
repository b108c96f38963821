package planner

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

const seedModulus = 1<<31 - 1

// SeedFrom derives a reproducible seed from its parts
func SeedFrom(parts ...string) int64 {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return int64(binary.BigEndian.Uint64(sum[:8]) % seedModulus)
}

// VariantName returns the label of the i-th variant, counting from zero
func VariantName(i int) string {
	return fmt.Sprintf("v%d", i+1)
}
