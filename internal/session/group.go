package session

import (
	"sort"
	"strings"
)

// SideChannels holds the channel files of one side, indexed by channel.
type SideChannels [NumChannels]*ChannelFile

// Complete reports whether all three channel slots are filled.
func (sc *SideChannels) Complete() bool {
	if sc == nil {
		return false
	}
	for _, f := range sc {
		if f == nil {
			return false
		}
	}
	return true
}

// Paths returns the file paths in channel order. Empty slots yield "".
func (sc *SideChannels) Paths() [NumChannels]string {
	var out [NumChannels]string
	for i, f := range sc {
		if f != nil {
			out[i] = f.Path
		}
	}
	return out
}

// Sizes returns the byte lengths in channel order. Empty slots yield 0.
func (sc *SideChannels) Sizes() [NumChannels]int64 {
	var out [NumChannels]int64
	for i, f := range sc {
		if f != nil {
			out[i] = f.Size
		}
	}
	return out
}

// Session is every channel file sharing one session id.
type Session struct {
	ID    string
	Sides map[Side]*SideChannels

	// Duplicates lists paths that claimed an already-filled slot and lost
	// to a lexicographically smaller path.
	Duplicates []string
}

// Complete reports whether side has all three channels.
func (s *Session) Complete(side Side) bool {
	return s.Sides[side].Complete()
}

// Processable reports whether both sides are complete.
func (s *Session) Processable() bool {
	return s.Complete(SideL) && s.Complete(SideR)
}

// Missing returns the empty slots as "<side>/<channel>" labels, L first.
func (s *Session) Missing() []string {
	var out []string
	for _, side := range Sides {
		sc := s.Sides[side]
		for ch := 0; ch < NumChannels; ch++ {
			if sc == nil || sc[ch] == nil {
				out = append(out, slotLabel(side, ch))
			}
		}
	}
	return out
}

// Groups maps session id to Session. Incomplete sessions are kept for
// diagnostics; use Processable to select the ones that can run.
type Groups map[string]*Session

// Group classifies files into sessions. The result does not depend on the
// order of files.
func Group(files []ChannelFile) Groups {
	g := make(Groups)
	for i := range files {
		f := files[i]
		s := g[f.SessionID]
		if s == nil {
			s = &Session{ID: f.SessionID, Sides: make(map[Side]*SideChannels, 2)}
			g[f.SessionID] = s
		}
		sc := s.Sides[f.Side]
		if sc == nil {
			sc = &SideChannels{}
			s.Sides[f.Side] = sc
		}

		cur := sc[f.Channel]
		switch {
		case cur == nil:
			sc[f.Channel] = &f
		case f.Path < cur.Path:
			s.Duplicates = append(s.Duplicates, cur.Path)
			sc[f.Channel] = &f
		case f.Path != cur.Path:
			s.Duplicates = append(s.Duplicates, f.Path)
		}
	}
	for _, s := range g {
		sort.Strings(s.Duplicates)
	}
	return g
}

// IDs returns all session ids, sorted.
func (g Groups) IDs() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Processable returns the sessions with both sides complete, sorted by id.
func (g Groups) Processable() []*Session {
	return g.filter(func(s *Session) bool { return s.Processable() })
}

// Incomplete returns the sessions missing at least one slot, sorted by id.
func (g Groups) Incomplete() []*Session {
	return g.filter(func(s *Session) bool { return !s.Processable() })
}

func (g Groups) filter(keep func(*Session) bool) []*Session {
	var out []*Session
	for _, id := range g.IDs() {
		if s := g[id]; keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// describeMissing is the one-line diagnostic for an incomplete session.
func describeMissing(s *Session) string {
	return strings.Join(s.Missing(), ", ")
}
