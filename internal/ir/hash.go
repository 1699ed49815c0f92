package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainCommandList is the domain prefix for command list content hashes.
// The version suffix leaves room for algorithm migration.
const DomainCommandList = "evscript/command-list/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of a command list. Two lists with the same
// commands hash identically regardless of ID or name.
func (l *CommandList) Hash() (string, error) {
	cmds := make(Array, len(l.Commands))
	for i, c := range l.Commands {
		cmds[i] = Object{
			"opcode":     Int(c.Opcode),
			"indent":     Int(c.Indent),
			"parameters": Array(c.Params),
		}
	}

	canonical, err := MarshalCanonical(cmds)
	if err != nil {
		return "", fmt.Errorf("hash command list %d: %w", l.ID, err)
	}
	return hashWithDomain(DomainCommandList, canonical), nil
}
