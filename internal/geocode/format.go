package geocode

import "strings"

// ShortName derives the "City, State" display string from a locality
// string built as "subLocality, locality, administrativeArea, country".
//
// With fewer than three parts the last part doubles as the secondary
// component, so a single part "City" yields "City, City".
func ShortName(locality string) (string, bool) {
	if strings.TrimSpace(locality) == "" {
		return "", false
	}

	parts := strings.Split(locality, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var primary, secondary string
	switch {
	case len(parts) >= 2:
		primary = parts[1]
	case len(parts) == 1:
		primary = parts[0]
	}
	switch {
	case len(parts) >= 3:
		secondary = parts[2]
	case len(parts) > 0:
		secondary = parts[len(parts)-1]
	}

	out := strings.Trim(primary+", "+secondary, " ,\t\n")
	if out == "" {
		return "", false
	}
	return out, true
}
