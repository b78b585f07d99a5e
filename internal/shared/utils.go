// Package shared
package shared

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
)

// ExtractBearerToken returns the raw Authorization header together with the
// token that follows the scheme. The raw header is what gets passed on to
// the identity service.
func ExtractBearerToken(c echo.Context) (header string, token string, err error) {
	header = c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.TrimSpace(header) == "" {
		return "", "", ErrMissingAuth
	}

	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", "", ErrInvalidFormat
	}

	token = strings.TrimSpace(rest)
	if token == "" {
		return "", "", ErrInvalidFormat
	}
	return header, token, nil
}

// Truncate shortens upstream messages before they end up in a response
// without splitting a multi-byte rune
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s...", s[:cut])
}
