package capture

import (
	"strconv"
	"strings"
)

// Progress is one parsed progress report from the engine's stderr.
type Progress struct {
	SizeKB  int64
	DeltaKB int64
	Bitrate string
}

// ParseSegmentOpen matches segment-start lines of the form
//
//	[segment @ 0x...] Opening 'file.mp4' for writing
//
// and returns the filename.
func ParseSegmentOpen(line string) (string, bool) {
	if !strings.HasPrefix(line, "[segment @") || !strings.Contains(line, "Opening") {
		return "", false
	}
	start := strings.IndexByte(line, '\'')
	if start == -1 {
		return "", false
	}
	end := strings.IndexByte(line[start+1:], '\'')
	if end == -1 {
		return "", false
	}
	return line[start+1 : start+1+end], true
}

// ProgressParser parses engine progress lines, tracking the previous size
// so each report carries a delta.
type ProgressParser struct {
	lastSizeKB int64
}

// ParseLine matches progress lines containing size= and time=, e.g.
//
//	size=    1024kB time=00:00:41.00 bitrate= 204.5kbits/s speed=1.01x
//
// Size is reported in kilobytes; bitrate is kept as the engine's textual
// form.
func (p *ProgressParser) ParseLine(line string) (Progress, bool) {
	sizeIdx := strings.Index(line, "size=")
	timeIdx := strings.Index(line, "time")
	if sizeIdx == -1 || timeIdx == -1 || timeIdx < sizeIdx {
		return Progress{}, false
	}

	sizeKB, err := strconv.ParseInt(stripNonDigits(line[sizeIdx+len("size="):timeIdx]), 10, 64)
	if err != nil {
		return Progress{}, false
	}

	var bitrate string
	if brIdx := strings.Index(line, "bitrate="); brIdx != -1 {
		rest := line[brIdx+len("bitrate="):]
		if spIdx := strings.Index(rest, "speed"); spIdx != -1 {
			bitrate = strings.TrimSpace(rest[:spIdx])
		} else {
			bitrate = strings.TrimSpace(rest)
		}
	}

	progress := Progress{
		SizeKB:  sizeKB,
		DeltaKB: sizeKB - p.lastSizeKB,
		Bitrate: bitrate,
	}
	p.lastSizeKB = sizeKB
	return progress, true
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
