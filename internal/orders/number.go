package orders

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	numberPrefix     = "ORD"
	baseSuffixLength = 6
	maxNumberRetries = 3
)

// IDSource yields ULID strings. Tests replace it for determinism.
type IDSource func() string

func defaultIDSource() string {
	return ulid.Make().String()
}

// FormatNumber builds ORD-YYYYMMDD-XXXXXX from the tail of a ULID. Each retry
// attempt widens the suffix by two characters.
func FormatNumber(now time.Time, id string, attempt int) string {
	width := baseSuffixLength + 2*attempt
	if width > len(id) {
		width = len(id)
	}
	suffix := strings.ToUpper(id[len(id)-width:])
	return numberPrefix + "-" + now.UTC().Format("20060102") + "-" + suffix
}

// IsOrderNumber reports whether ref looks like an internally minted order number.
func IsOrderNumber(ref string) bool {
	return strings.HasPrefix(ref, numberPrefix+"-")
}
