package ledger

// DefaultScrollThreshold is how many rows away from the bottom still count
// as "at the bottom".
const DefaultScrollThreshold = 1

// AutoScroll decides whether a transcript view should follow new entries.
// It follows while the user is at the bottom and stops once they scroll
// further up than the threshold; returning near the bottom resumes it.
type AutoScroll struct {
	threshold int
	follow    bool
}

// NewAutoScroll creates a follower that starts at the bottom.
func NewAutoScroll(threshold int) *AutoScroll {
	if threshold < 0 {
		threshold = 0
	}
	return &AutoScroll{threshold: threshold, follow: true}
}

// Observe records the view position after a user scroll. offset is the
// first visible row, visible the viewport height, total the content height.
func (a *AutoScroll) Observe(offset, visible, total int) {
	distance := total - (offset + visible)
	a.follow = distance <= a.threshold
}

// Following reports whether new content should scroll the view.
func (a *AutoScroll) Following() bool { return a.follow }

// Resume forces following, e.g. after the user submits.
func (a *AutoScroll) Resume() { a.follow = true }
