package timestamp

import "time"

// Fields are the calendar fields of an instant in one time zone.
type Fields struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Day    int        `json:"day"`
	Hour   int        `json:"hour"`
	Minute int        `json:"minute"`
	Second int        `json:"second"`
}

// Rendering holds an instant resolved both in a local zone and in UTC.
type Rendering struct {
	Instant time.Time
	Local   Fields
	UTC     Fields

	// Zone is the abbreviation of the local zone at the instant ("JST", "CET").
	Zone string
}

// Convert resolves c in loc and in UTC. A nil loc means time.Local.
func Convert(c Classification, loc *time.Location) Rendering {
	if loc == nil {
		loc = time.Local
	}
	instant := time.UnixMilli(c.Millis)
	local := instant.In(loc)
	zone, _ := local.Zone()

	return Rendering{
		Instant: instant,
		Local:   fieldsOf(local),
		UTC:     fieldsOf(instant.UTC()),
		Zone:    zone,
	}
}

func fieldsOf(t time.Time) Fields {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()
	return Fields{
		Year:   year,
		Month:  month,
		Day:    day,
		Hour:   hour,
		Minute: minute,
		Second: second,
	}
}
