package utils

import (
	"strings"

	"github.com/google/uuid"
)

const TicketCodeLength = 8

// GenerateTicketCode returns eight upper-case hex characters taken from a
// random UUID.
func GenerateTicketCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:TicketCodeLength])
}

// NormalizeTicketCode makes codes case- and whitespace-insensitive.
func NormalizeTicketCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateRequestID tags a request for log correlation.
func GenerateRequestID() string {
	return uuid.NewString()
}
