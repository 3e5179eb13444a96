package model

import "time"

// State is everything the store persists. It is always saved as a whole.
type State struct {
	Files []File `json:"files"`
	Jobs  []Job  `json:"jobs"`
}

func NewState() *State {
	return &State{
		Files: []File{},
		Jobs:  []Job{},
	}
}

// Clone returns a deep copy, including the pointer fields of jobs
func (s *State) Clone() *State {
	c := &State{
		Files: make([]File, len(s.Files)),
		Jobs:  make([]Job, len(s.Jobs)),
	}

	copy(c.Files, s.Files)

	for i, j := range s.Jobs {
		j.StartedAt = cloneInt(j.StartedAt)
		j.FinishedAt = cloneInt(j.FinishedAt)

		if j.Error != nil {
			e := *j.Error
			j.Error = &e
		}

		c.Jobs[i] = j
	}

	return c
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}

	v := *p
	return &v
}

// Now returns the current time in unix milliseconds, the unit of every
// timestamp in the store
func Now() int64 {
	return time.Now().UnixMilli()
}
