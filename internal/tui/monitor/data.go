package monitor

import (
	"time"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/models"
)

// FetchData retrieves all data needed for the monitor display
func FetchData(database *db.DB, online func() bool) RefreshDataMsg {
	msg := RefreshDataMsg{
		Timestamp: time.Now(),
	}
	if online != nil {
		msg.IsOnline = online()
	}

	queue, err := database.ListActions(models.StatusPending, models.StatusInFlight)
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Queue = queue

	failed, err := database.ListActions(models.StatusFailed)
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Failed = failed

	counts, err := database.CountByStatus()
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Counts = counts

	recs, err := database.ListReconciliations()
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Reconciliations = recs

	msg.Mirror = fetchMirrorCounts(database)
	return msg
}

// fetchMirrorCounts tallies record totals per kind for the footer.
func fetchMirrorCounts(database *db.DB) map[models.EntityKind]MirrorCounts {
	counts := make(map[models.EntityKind]MirrorCounts, len(models.Kinds))
	for _, kind := range models.Kinds {
		recs, err := database.ListByKind(kind)
		if err != nil {
			continue
		}
		c := MirrorCounts{Total: len(recs)}
		for _, rec := range recs {
			if rec.Pending {
				c.Pending++
			}
		}
		counts[kind] = c
	}
	return counts
}
