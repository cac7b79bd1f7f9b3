package domain

import (
	"strings"

	"github.com/google/uuid"
)

func shortHex() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// NewReferenceCode mints a TRX- reference code. Uniqueness is enforced by storage.
func NewReferenceCode() string {
	return "TRX-" + shortHex()
}

// NewAccountNumber mints a CB- account number.
func NewAccountNumber() string {
	return "CB-" + shortHex()
}
