package auth

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsrfTokenRoundTrip(t *testing.T) {
	token := IssueCsrfToken(7)
	assert.NoError(t, VerifyCsrfToken(7, token))
}

func TestCsrfTokenBoundToUser(t *testing.T) {
	token := IssueCsrfToken(7)
	assert.ErrorIs(t, VerifyCsrfToken(8, token), ErrCsrfRejected)
}

func TestCsrfTokenMalformed(t *testing.T) {
	for _, token := range []string{"", "garbage", "123", "abc.def", "99999999999999999999.mac"} {
		assert.ErrorIs(t, VerifyCsrfToken(7, token), ErrCsrfRejected, "token %q", token)
	}
}

func TestCsrfTokenExpired(t *testing.T) {
	expiry := time.Now().Add(-time.Minute).Unix()
	token := fmt.Sprintf("%d.%s", expiry, csrfMAC(7, expiry))
	assert.ErrorIs(t, VerifyCsrfToken(7, token), ErrCsrfRejected)
}

func TestCsrfTokenTamperedExpiry(t *testing.T) {
	token := IssueCsrfToken(7)
	parts := strings.SplitN(token, ".", 2)
	require.Len(t, parts, 2)

	forged := fmt.Sprintf("%d.%s", time.Now().Add(48*time.Hour).Unix(), parts[1])
	assert.ErrorIs(t, VerifyCsrfToken(7, forged), ErrCsrfRejected)
}
