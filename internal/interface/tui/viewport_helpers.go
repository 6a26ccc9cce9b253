package tui

// Lines of context kept above a match when scrolling to it
const matchContext = 3

// stepMatch moves to the next or previous match, wrapping around
func stepMatch(idx, count int, forward bool) int {
	if count == 0 {
		return 0
	}
	if forward {
		return (idx + 1) % count
	}
	return (idx - 1 + count) % count
}

// scrollToMatchSmart scrolls for n/p navigation: a match that is already
// visible leaves the viewport alone, otherwise it lands a few lines from
// the top.
func scrollToMatchSmart(m *Model) {
	if m.matchIdx < 0 || m.matchIdx >= len(m.matchLines) {
		return
	}

	line := m.matchLines[m.matchIdx]
	if line >= m.viewport.YOffset && line < m.viewport.YOffset+m.viewport.Height {
		return
	}
	m.viewport.SetYOffset(max(line-matchContext, 0))
}

// scrollToMatchAlways scrolls to the current match while the query is typed
func scrollToMatchAlways(m *Model) {
	if m.matchIdx < 0 || m.matchIdx >= len(m.matchLines) {
		return
	}
	m.viewport.SetYOffset(max(m.matchLines[m.matchIdx]-matchContext, 0))
}
