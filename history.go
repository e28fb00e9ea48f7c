package lahc

// History is the fixed-length circular store of past current energies used
// as the late acceptance threshold. Its length never changes and every slot
// always holds a valid energy.
type History struct {
	slots []float64
}

// NewHistory returns a buffer of the given length with every slot set to
// initial.
func NewHistory(length int, initial float64) (*History, error) {
	if length < 1 {
		return nil, &ConfigError{Field: "HistoryLength", Reason: "must be at least 1"}
	}
	slots := make([]float64, length)
	for i := range slots {
		slots[i] = initial
	}
	return &History{slots: slots}, nil
}

// Len returns the buffer length L.
func (h *History) Len() int {
	return len(h.slots)
}

// Index maps a step counter onto a slot.
func (h *History) Index(step int) int {
	v := step % len(h.slots)
	if v < 0 {
		v += len(h.slots)
	}
	return v
}

// Get returns the energy stored at slot step mod L.
func (h *History) Get(step int) float64 {
	return h.slots[h.Index(step)]
}

// Set overwrites slot step mod L. No other slot is touched.
func (h *History) Set(step int, energy float64) {
	h.slots[h.Index(step)] = energy
}

// Snapshot returns an independent copy of the slots in index order.
func (h *History) Snapshot() []float64 {
	return append([]float64(nil), h.slots...)
}
