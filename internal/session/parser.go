package session

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Side identifies one of the two synchronized capture angles.
type Side string

const (
	SideL Side = "L"
	SideR Side = "R"
)

// Sides lists both sides in processing order.
var Sides = [2]Side{SideL, SideR}

// NumChannels is the number of channel slots per side (R, G, B).
const NumChannels = 3

// ChannelFile is one discovered channel dump. Identity is
// (SessionID, Side, Channel).
type ChannelFile struct {
	Path      string
	SessionID string
	Side      Side
	Channel   int
	Size      int64
}

// Slot returns the "<side>/<channel>" label used in diagnostics.
func (f ChannelFile) Slot() string {
	return slotLabel(f.Side, f.Channel)
}

func slotLabel(side Side, ch int) string {
	return string(side) + "/" + string(rune('0'+ch))
}

// ParseChannelFile derives session id, side and channel index from the base
// filename. The last "_"-separated token is the channel index and must be
// 0, 1 or 2; anything else reports ok=false and the file is ignored. When
// the token before it is purely alphabetic it is the side token: one that
// contains "l" (any case) is side L, any other is side R. Without a side
// token the side is R.
func ParseChannelFile(path string, size int64) (ChannelFile, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	rest, chToken, ok := cutLast(base)
	if !ok || rest == "" {
		return ChannelFile{}, false
	}
	var ch int
	switch chToken {
	case "0", "1", "2":
		ch = int(chToken[0] - '0')
	default:
		return ChannelFile{}, false
	}

	side := SideR
	id := rest
	if prefix, sideToken, ok := cutLast(rest); ok && prefix != "" && isAlpha(sideToken) {
		side = sideFromToken(sideToken)
		id = prefix
	}

	return ChannelFile{
		Path:      path,
		SessionID: id,
		Side:      side,
		Channel:   ch,
		Size:      size,
	}, true
}

// cutLast splits s around its last "_".
func cutLast(s string) (before, after string, found bool) {
	i := strings.LastIndexByte(s, '_')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func sideFromToken(tok string) Side {
	if strings.Contains(strings.ToLower(tok), "l") {
		return SideL
	}
	return SideR
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
