package domain

import (
	"math/rand"
	"sort"
	"strings"
)

// Diversify selects up to size songs so that no single artist dominates a
// short list. Songs are grouped into per-artist queues capped at perArtist,
// drawn round-robin, then uniformly shuffled so the final order is
// unpredictable across repeated calls with identical input. The quota only
// binds while there are enough artists to fill the request: when fewer than
// size quota slots exist, the remaining songs top the result up to
// min(len(songs), size).
//
// rng may be nil, in which case the shared source is used; tests inject a
// seeded generator.
func Diversify(songs []PlaylistSong, size, perArtist int, rng *rand.Rand) []PlaylistSong {
	if size <= 0 || len(songs) == 0 {
		return nil
	}
	if perArtist < 1 {
		perArtist = 1
	}

	byArtist := make(map[string][]PlaylistSong)
	var order []string
	var overflow []PlaylistSong
	for _, s := range songs {
		key := strings.ToLower(strings.TrimSpace(s.Artist))
		if key == "" {
			key = "unknown"
		}
		if _, seen := byArtist[key]; !seen {
			order = append(order, key)
		}
		if len(byArtist[key]) < perArtist {
			byArtist[key] = append(byArtist[key], s)
		} else {
			overflow = append(overflow, s)
		}
	}

	queues := make([][]PlaylistSong, 0, len(order))
	for _, key := range order {
		queues = append(queues, byArtist[key])
	}

	var picked []PlaylistSong
	for len(picked) < size && len(queues) > 0 {
		next := queues[:0]
		for _, q := range queues {
			if len(picked) >= size {
				break
			}
			picked = append(picked, q[0])
			if len(q) > 1 {
				next = append(next, q[1:])
			}
		}
		queues = next
	}

	if len(order)*perArtist < size {
		for _, s := range overflow {
			if len(picked) >= size {
				break
			}
			picked = append(picked, s)
		}
	}

	swap := func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	}
	if rng != nil {
		rng.Shuffle(len(picked), swap)
	} else {
		rand.Shuffle(len(picked), swap)
	}

	return picked
}

// PrioritizePreview stably reorders songs so that entries with a playable
// preview come first. Applied after Diversify when both transforms are in
// play; the two are independent and composed in that fixed order.
func PrioritizePreview(songs []PlaylistSong) []PlaylistSong {
	out := make([]PlaylistSong, len(songs))
	copy(out, songs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PreviewURL != "" && out[j].PreviewURL == ""
	})
	return out
}
