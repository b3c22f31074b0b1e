package relationship

import "github.com/rivofx/newpulse/internal/models"

// Status is the friendship state as one viewer sees it. It is derived from
// the record set on every read and never stored.
type Status string

const (
	StatusNone            Status = "none"
	StatusPendingSent     Status = "pending_sent"
	StatusPendingReceived Status = "pending_received"
	StatusAccepted        Status = "accepted"
)

// DeriveStatus scans the active records touching the viewer for the one that
// links viewer and candidate. Records that are not active are skipped, so a
// caller may pass an unfiltered set. The returned record is a copy.
func DeriveStatus(viewerID, candidateID string, records []models.Friendship) (Status, *models.Friendship) {
	for _, r := range records {
		if !r.Status.IsActive() || !r.Links(viewerID, candidateID) {
			continue
		}
		match := r
		switch {
		case r.Status == models.StatusAccepted:
			return StatusAccepted, &match
		case r.RequesterID == viewerID:
			return StatusPendingSent, &match
		default:
			return StatusPendingReceived, &match
		}
	}
	return StatusNone, nil
}
