package domain

import "strings"

const trackURIPrefix = "spotify:track:"

// NormalizeTrackID strips the platform URI prefix so that
// "spotify:track:XXX" and plain "XXX" compare equal. All dedup and
// boost logic works on normalized identifiers.
func NormalizeTrackID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), trackURIPrefix)
}

// TrackURI returns the full platform URI for a track identifier,
// adding the prefix when it is missing.
func TrackURI(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, trackURIPrefix) {
		return id
	}
	return trackURIPrefix + id
}
