package scheduling

import (
	"cmp"
	"slices"

	"healthcare-companion-server/internal/models"
)

// SortForDisplay orders appointments in place. Two appointments that both
// carry a manual order compare by it; otherwise the earlier one comes first.
func SortForDisplay(appts []models.Appointment) {
	slices.SortStableFunc(appts, compareForDisplay)
}

func compareForDisplay(a, b models.Appointment) int {
	if a.DisplayOrder != nil && b.DisplayOrder != nil {
		return cmp.Compare(*a.DisplayOrder, *b.DisplayOrder)
	}
	return cmp.Compare(a.ScheduledAt, b.ScheduledAt)
}
