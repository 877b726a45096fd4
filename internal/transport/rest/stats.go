package rest

import (
	"encoding/json"
	"net/http"
	"time"
)

var nairobiTZ = time.FixedZone("EAT", 3*60*60)

// statsCounter is the marketing "Kenyans checked this week" figure: it
// resets to 10,000 every Sunday midnight Kenya time and climbs by 100
// per hour.
func statsCounter(now time.Time) int64 {
	local := now.In(nairobiTZ)

	daysSinceSunday := int(local.Weekday())
	lastSundayMidnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, nairobiTZ).
		AddDate(0, 0, -daysSinceSunday)

	hoursElapsed := int64(local.Sub(lastSundayMidnight).Hours())
	return 10000 + hoursElapsed*100
}

func statsCounterHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"success": true,
		"counter": statsCounter(time.Now()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
