// Package media turns client supplied data URIs into raw bytes
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"formscan-relay/internal/shared"
)

const (
	scheme       = "data:"
	base64Marker = ";base64"
)

// DataURI is a decoded `data:<mime>;base64,<payload>` string
type DataURI struct {
	MIMEType string
	Data     []byte
}

// IsDataURI reports whether s uses the data: scheme
func IsDataURI(s string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}

// ParseDataURI splits the header from the payload at the first comma,
// checks the header against mimePrefix (skipped when empty) and decodes the
// payload. All failures are BadRequest errors.
func ParseDataURI(s string, mimePrefix string) (*DataURI, error) {
	if !IsDataURI(s) {
		return nil, shared.NewBadRequest("expected a data uri")
	}

	header, payload, found := strings.Cut(s[len(scheme):], ",")
	if !found {
		return nil, shared.ErrMalformedURI
	}

	mimeType, params, _ := strings.Cut(header, ";")
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !strings.HasSuffix(strings.ToLower(";"+params), base64Marker) {
		return nil, shared.NewBadRequest("data uri must be base64 encoded")
	}
	if mimeType == "" {
		return nil, shared.NewBadRequest("data uri is missing a mime type")
	}
	if mimePrefix != "" && !strings.HasPrefix(mimeType, mimePrefix) {
		return nil, shared.NewBadRequest("unexpected media type %q", mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, errors.Join(shared.NewBadRequest("invalid base64 payload"), err)
	}
	if len(data) == 0 {
		return nil, shared.NewBadRequest("empty media payload")
	}

	return &DataURI{MIMEType: mimeType, Data: data}, nil
}

// FormatDataURI is the inverse of ParseDataURI
func FormatDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("%s%s%s,%s", scheme, mimeType, base64Marker, base64.StdEncoding.EncodeToString(data))
}
