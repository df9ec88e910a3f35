package protocol

// MoveRange moves the count elements starting at from so that they sit at
// to, where both positions are measured before the move. The block lands at
// to when moving backward and at to-count when moving forward, matching
// Move's wire semantics. s is modified in place and returned.
func MoveRange[T any](s []T, from, to, count int) []T {
	if count == 0 || from == to {
		return s
	}
	block := make([]T, count)
	copy(block, s[from:from+count])
	rest := append(s[:from:from], s[from+count:]...)

	dest := to
	if from < to {
		dest = to - count
	}
	out := make([]T, 0, len(s))
	out = append(out, rest[:dest]...)
	out = append(out, block...)
	out = append(out, rest[dest:]...)
	copy(s, out)
	return s
}

// ValidMove reports whether MoveRange(s, from, to, count) stays within a
// list of length n. A forward move may not land inside its own block.
func ValidMove(n, from, to, count int) bool {
	if count < 0 || from < 0 || to < 0 || from > n || count > n-from {
		return false
	}
	dest := to
	if from < to {
		if to < from+count {
			return false
		}
		dest = to - count
	}
	return dest >= 0 && dest <= n-count
}
