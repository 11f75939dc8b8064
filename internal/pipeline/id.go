package pipeline

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultIDPrefix starts every operation id.
const DefaultIDPrefix = "ARC"

// NewOperationID returns PREFIX-XXXXXXXX where X is uppercase hex from a
// random UUID. The prefix is uppercased and anything outside [A-Z0-9-] is
// dropped. Collisions are not checked.
func NewOperationID(prefix string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return -1
	}, strings.ToUpper(prefix))
	if clean == "" {
		clean = DefaultIDPrefix
	}
	return clean + "-" + strings.ToUpper(uuid.NewString()[:8])
}
