package serialmux

import "strings"

// Line kinds on the tick feed.
const (
	LineTick    = "tick"
	LineComment = "comment"
	LineBlank   = "blank"
	LineUnknown = "unknown"
)

// ClassifyLine sorts a feed line without decoding it. Fixture files may
// carry '#' comments; the bridge prints plain-text status lines on boot.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineBlank
	case strings.HasPrefix(line, "#"):
		return LineComment
	case strings.HasPrefix(line, "{"):
		return LineTick
	default:
		return LineUnknown
	}
}
