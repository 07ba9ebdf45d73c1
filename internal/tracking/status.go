package tracking

import (
	"strings"

	"shiptrace/internal/models"
)

var canonicalStatuses = []string{
	models.StatusPending,
	models.StatusOnHold,
	models.StatusShipped,
	models.StatusOutForDelivery,
	models.StatusDelivered,
	models.StatusException,
}

// NormalizeStatus maps a status onto its canonical casing when it is one of
// the known statuses and otherwise returns the trimmed text unchanged.
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	for _, c := range canonicalStatuses {
		if strings.EqualFold(s, c) {
			return c
		}
	}
	return s
}

// IsKnownStatus reports whether s is one of the canonical statuses.
func IsKnownStatus(s string) bool {
	s = strings.TrimSpace(s)
	for _, c := range canonicalStatuses {
		if strings.EqualFold(s, c) {
			return true
		}
	}
	return false
}

// IsDelivered reports whether s is the delivered status, in any casing.
func IsDelivered(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), models.StatusDelivered)
}

// IsTerminal reports whether no further movement is expected for s.
func IsTerminal(s string) bool {
	return IsDelivered(s) || strings.EqualFold(strings.TrimSpace(s), models.StatusException)
}
