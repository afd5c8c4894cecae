package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const csrfTokenTTL = 4 * time.Hour

var ErrCsrfRejected = errors.New("invalid or expired csrf token")

func csrfSecret() []byte {
	secret := os.Getenv("CSRF_SECRET")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		secret = "your-secret-key" // Use this only for development
	}
	return []byte(secret)
}

func csrfMAC(userID, expiry int64) string {
	mac := hmac.New(sha256.New, csrfSecret())
	fmt.Fprintf(mac, "%d.%d", userID, expiry)
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueCsrfToken mints an anti-forgery token bound to the user id:
// "<expiry>.<hmac>".
func IssueCsrfToken(userID int64) string {
	expiry := time.Now().Add(csrfTokenTTL).Unix()
	return fmt.Sprintf("%d.%s", expiry, csrfMAC(userID, expiry))
}

// VerifyCsrfToken checks a token against the user it was issued to. Missing,
// malformed, expired, and wrong-user tokens all fail the same way.
func VerifyCsrfToken(userID int64, token string) error {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return ErrCsrfRejected
	}

	expiry, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || time.Now().Unix() > expiry {
		return ErrCsrfRejected
	}

	expected := csrfMAC(userID, expiry)
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return ErrCsrfRejected
	}
	return nil
}
