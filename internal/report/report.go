package report

// Report accumulates human-readable outcome entries for a delivery or
// republish run. Entries are grouped under a message key and keep insertion
// order so the rendered summary reads in the order events happened.
type Report struct {
	keys   []string
	items  map[string][]string
	failed bool
}

// New returns an empty report.
func New() *Report {
	return &Report{items: make(map[string][]string)}
}

// Add appends a detail line under the given message key.
func (r *Report) Add(msg, detail string) {
	r.ensureKey(msg)
	r.items[msg] = append(r.items[msg], detail)
}

// Set replaces all detail lines under the given message key.
func (r *Report) Set(msg string, details []string) {
	r.ensureKey(msg)
	r.items[msg] = append([]string(nil), details...)
}

// Fail records a failure entry. The report's overall success flag is
// cleared; warnings recorded with Add do not affect it.
func (r *Report) Fail(msg, detail string) {
	r.Add(msg, detail)
	r.failed = true
}

// MarkFailed clears the success flag without recording an entry.
func (r *Report) MarkFailed() {
	r.failed = true
}

// OK reports whether any failure has been recorded.
func (r *Report) OK() bool {
	return !r.failed
}

// Merge folds another report into this one. Same-key entries are replaced,
// matching how per-version reports override batch-level keys; a failed
// sub-report fails the whole run.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, key := range other.keys {
		r.Set(key, other.items[key])
	}
	if other.failed {
		r.failed = true
	}
}

// Keys returns the message keys in insertion order.
func (r *Report) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Items returns the detail lines recorded under a message key.
func (r *Report) Items(msg string) []string {
	return append([]string(nil), r.items[msg]...)
}

// Len returns the number of message keys.
func (r *Report) Len() int {
	return len(r.keys)
}

func (r *Report) ensureKey(msg string) {
	if r.items == nil {
		r.items = make(map[string][]string)
	}
	if _, ok := r.items[msg]; !ok {
		r.keys = append(r.keys, msg)
	}
}
