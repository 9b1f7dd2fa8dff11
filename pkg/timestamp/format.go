package timestamp

import "fmt"

// Layout describes the shape Format produces.
const Layout = "YYYY/MM/DD HH:mm:ss[.fraction]"

// Format renders f as "YYYY/MM/DD HH:mm:ss". A non-empty fraction is
// appended after a '.' exactly as given, without rounding or trimming.
func Format(f Fields, fraction string) string {
	s := fmt.Sprintf("%04d/%02d/%02d %02d:%02d:%02d",
		f.Year, int(f.Month), f.Day, f.Hour, f.Minute, f.Second)
	if fraction != "" {
		s += "." + fraction
	}
	return s
}
