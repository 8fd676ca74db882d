package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Paris")
	if err != nil {
		panic(err)
	}
}

// force timezone to be French local time because the portal renders every
// date and clock without zone markers, and servers deployed elsewhere would
// otherwise skew Year()/Month()/Day()/Hour() arithmetic.
func Now() time.Time {
	return time.Now().In(Location)
}
