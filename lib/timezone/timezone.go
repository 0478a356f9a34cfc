package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// minimal containers ship without tzdata, IST has no DST so a fixed zone is exact
		Location = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// force timezone to be in IST because the portal publishes hearing dates
// as IST calendar days, comparing them against a server clock in another
// zone would shift "tomorrow" around midnight.
func Now() time.Time {
	return time.Now().In(Location)
}

// StartOfDay truncates t to midnight of its calendar day in Location.
func StartOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}
