package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	accessKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	accessKeyGroups   = 3
	accessKeyGroupLen = 4

	// LinkIDLength is the length of collection and airdrop share identifiers.
	LinkIDLength = 16
)

var (
	accessKeyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
	linkIDPattern    = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// AccessKeyGenerator produces XXXX-XXXX-XXXX keys. It does not know about
// keys already stored; uniqueness is checked by the caller before insert.
type AccessKeyGenerator struct {
	source io.Reader
}

func NewAccessKeyGenerator() *AccessKeyGenerator {
	return &AccessKeyGenerator{source: rand.Reader}
}

func (g *AccessKeyGenerator) Generate() (string, error) {
	alphabetLen := big.NewInt(int64(len(accessKeyAlphabet)))

	var sb strings.Builder
	sb.Grow(accessKeyGroups*accessKeyGroupLen + accessKeyGroups - 1)

	for group := 0; group < accessKeyGroups; group++ {
		if group > 0 {
			sb.WriteByte('-')
		}
		for i := 0; i < accessKeyGroupLen; i++ {
			n, err := rand.Int(g.source, alphabetLen)
			if err != nil {
				return "", fmt.Errorf("failed to read random source: %w", err)
			}
			sb.WriteByte(accessKeyAlphabet[n.Int64()])
		}
	}

	return sb.String(), nil
}

func IsAccessKey(s string) bool {
	return accessKeyPattern.MatchString(s)
}

// NewLinkID returns 16 lowercase hex characters taken from a random UUID.
func NewLinkID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:LinkIDLength]
}

func IsLinkID(s string) bool {
	return linkIDPattern.MatchString(s)
}
