package types

// RunResult is the validated output of one simulation request.
// Both sequences keep the service-supplied order. A RunResult belongs to the
// run that produced it and is never merged with another.
type RunResult struct {
	Adaptive []LogEntry `json:"adaptive" msgpack:"adaptive"`
	Fixed    []LogEntry `json:"fixed" msgpack:"fixed"`
}

// Entries returns the sequence for the given track.
func (r *RunResult) Entries(track Track) []LogEntry {
	if r == nil {
		return nil
	}
	switch track {
	case TrackAdaptive:
		return r.Adaptive
	case TrackFixed:
		return r.Fixed
	default:
		return nil
	}
}

// ReplayLength is the number of entries replayed per track: the length of
// the shorter sequence.
func (r *RunResult) ReplayLength() int {
	if r == nil {
		return 0
	}
	return min(len(r.Adaptive), len(r.Fixed))
}

// Truncated is the number of trailing entries of the longer track that a
// lock-step replay never reaches.
func (r *RunResult) Truncated() int {
	if r == nil {
		return 0
	}
	a, f := len(r.Adaptive), len(r.Fixed)
	if a > f {
		return a - f
	}
	return f - a
}
