package ticketing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const suffixLen = 4

var codePattern = regexp.MustCompile(`^([A-Z0-9]+)-([0-9]+)-([0-9a-f]{4})$`)

// GenerateCode builds a ticket code of the form PREFIX-{registrationID}-{hex4}.
// The suffix is drawn from a hash over the id, fresh entropy and the clock, so
// two calls for the same registration almost never agree. Collisions are
// caught by the unique index on tickets.code.
func GenerateCode(prefix string, registrationID int64) string {
	entropy := make([]byte, 16)
	_, _ = rand.Read(entropy)

	var buf [8]byte
	h := sha256.New()
	_, _ = h.Write([]byte(strconv.FormatInt(registrationID, 10)))
	_, _ = h.Write(entropy)
	binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	_, _ = h.Write(buf[:])
	sum := hex.EncodeToString(h.Sum(nil))

	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(prefix), registrationID, sum[:suffixLen])
}

// ParseCode splits a ticket code into its registration id. It only checks
// shape; existence is decided by the store.
func ParseCode(code string) (prefix string, registrationID int64, ok bool) {
	m := codePattern.FindStringSubmatch(strings.TrimSpace(code))
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return m[1], id, true
}

// NormalizeCode trims scanner noise and restores the canonical casing.
func NormalizeCode(raw string) string {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, "-")
	if idx < 0 {
		return raw
	}
	return strings.ToUpper(raw[:idx]) + strings.ToLower(raw[idx:])
}
