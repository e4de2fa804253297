package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
}

// force the portal's timezone because servers end up in arbitrary zones,
// which disturbs date math based on <time.Time>.Year()/Month()/Day()/Hour()
// for the portal's zone-less date strings
func Now() time.Time {
	return time.Now().In(Location)
}
