package pipeline

// RunStats tracks aggregate counters across a batch run.
type RunStats struct {
	Total       int   `yaml:"total"` // Sessions discovered, complete or not.
	Completed   int   `yaml:"completed"`
	Failed      int   `yaml:"failed"`
	Skipped     int   `yaml:"skipped"`
	Incomplete  int   `yaml:"incomplete"`
	Frames      int   `yaml:"frames"`       // Frames per side summed over completed sessions.
	OutputBytes int64 `yaml:"output_bytes"` // Bytes written across all final outputs.
	Ignored     int   `yaml:"ignored_files"`
}

// Add folds rec into the counters.
func (s *RunStats) Add(rec *SessionRecord) {
	switch {
	case rec.Incomplete():
		s.Incomplete++
	case rec.State == StateCleaned:
		s.Completed++
		s.Frames += rec.Frames
		s.OutputBytes += rec.Bytes
	case rec.State == StateFailed:
		s.Failed++
	case rec.State == StateSkipped:
		s.Skipped++
	}
}

// OK reports whether no processable session failed.
func (s *RunStats) OK() bool { return s.Failed == 0 }
