package panel

// Locator finds the playing track in a song list ("locate" toolbar button).
type Locator struct {
	playing func() string
}

func NewLocator(playing func() string) Locator {
	return Locator{playing: playing}
}

// Active reports whether locating makes sense: the list is non-empty and
// something is playing.
func (l Locator) Active(ids []string) bool {
	return len(ids) > 0 && l.playing != nil && l.playing() != ""
}

// Locate returns the index of the playing track in ids, or -1.
func (l Locator) Locate(ids []string) int {
	if !l.Active(ids) {
		return -1
	}
	current := l.playing()
	for i, id := range ids {
		if id == current {
			return i
		}
	}
	return -1
}
