package ticketing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const accessScope = "registration-access:"

// SignRegistrationAccess derives the token that unlocks a registration's status
// view. It is handed to the registrant once, when the registration is created.
func SignRegistrationAccess(secret string, registrationID int64) string {
	if strings.TrimSpace(secret) == "" || registrationID <= 0 {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(accessScope + strconv.FormatInt(registrationID, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyRegistrationAccess(secret string, registrationID int64, token string) bool {
	expected := SignRegistrationAccess(secret, registrationID)
	token = strings.TrimSpace(token)
	if expected == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(token))
}
