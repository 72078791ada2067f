package anim

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeFormat selects how Animation.Serialize renders keyframe positions, and
// how Parse and the property-bag time readers (§4.1) interpret position
// strings.
type TimeFormat int

// Time formats.
const (
	Frames TimeFormat = iota
	Clock             // HH:MM:SS.mmm
	SMPTENDF          // HH:MM:SS:ff (non-drop-frame)
	SMPTEDF           // HH:MM:SS;ff (drop-frame)
)

// ParsePosition parses a position string as frames, clock time, or SMPTE
// timecode, per §4.1's "time-string parses accept...". fps is required for
// clock/SMPTE conversion to a frame index.
func ParsePosition(s string, fps float64) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty position")
	}

	if !strings.Contains(s, ":") {
		// Bare frames, or a bare seconds-as-double clock value.
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse position %q: %w", s, err)
		}
		return int(f * fps), nil
	}

	sep := byte(':')
	if strings.Contains(s, ";") {
		sep = ';'
	}

	lastSepIdx := strings.LastIndexByte(s, sep)
	headPart := s[:lastSepIdx]
	tailPart := s[lastSepIdx+1:]

	// HH:MM:SS.mmm (clock) vs HH:MM:SS:ff / HH:MM:SS;ff (SMPTE).
	if sep == ':' && strings.Contains(tailPart, ".") {
		return parseClock(s, fps)
	}
	if sep == ';' {
		return parseSMPTE(headPart, tailPart, fps, true)
	}
	// HH:MM:SS:ff
	if strings.Count(s, ":") == 3 {
		idx := strings.LastIndexByte(s, ':')
		return parseSMPTE(s[:idx], s[idx+1:], fps, false)
	}
	return parseClock(s, fps)
}

func parseClock(s string, fps float64) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", s, err)
	}
	totalSeconds := float64(h*3600+m*60) + sec
	return int(totalSeconds*fps + 0.5), nil
}

// parseSMPTE parses "HH:MM:SS" in hms plus a frame-number tail ffStr, per
// §4.1's HH:MM:SS:ff / HH:MM:SS;ff grammar. Drop-frame timecode (;ff) skips
// frame numbers 0 and 1 at the start of every minute except every tenth
// minute; non-drop-frame does not.
func parseSMPTE(hms, ffStr string, fps float64, dropFrame bool) (int, error) {
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid SMPTE time %q", hms)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", hms, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", hms, err)
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", hms, err)
	}
	ff, err := strconv.Atoi(ffStr)
	if err != nil {
		return 0, fmt.Errorf("invalid frame number %q: %w", ffStr, err)
	}

	framesPerSec := int(fps + 0.5)
	if framesPerSec <= 0 {
		framesPerSec = 25
	}
	totalMinutes := h*60 + m
	totalFrames := (h*3600+m*60+s)*framesPerSec + ff

	if dropFrame {
		// Drop 2 frame numbers per minute except every 10th minute.
		droppedMinutes := totalMinutes - totalMinutes/10
		totalFrames -= droppedMinutes * 2
	}
	return totalFrames, nil
}

// FormatPosition renders position in format f at the given frame rate, per
// §4.9's "time-valued properties are emitted in the configured time format".
func (f TimeFormat) FormatPosition(position int, fps float64) string {
	return f.formatPosition(position, fps)
}

func (f TimeFormat) formatPosition(position int, fps float64) string {
	switch f {
	case Frames:
		return strconv.Itoa(position)
	case Clock:
		return formatClock(position, fps)
	case SMPTENDF:
		return formatSMPTE(position, fps, ':')
	case SMPTEDF:
		return formatSMPTE(position, fps, ';')
	default:
		return strconv.Itoa(position)
	}
}

func formatClock(position int, fps float64) string {
	if fps <= 0 {
		fps = 25
	}
	totalSeconds := float64(position) / fps
	h := int(totalSeconds) / 3600
	m := (int(totalSeconds) % 3600) / 60
	s := int(totalSeconds) % 60
	ms := int((totalSeconds-float64(int(totalSeconds)))*1000 + 0.5)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func formatSMPTE(position int, fps float64, sep byte) string {
	if fps <= 0 {
		fps = 25
	}
	framesPerSec := int(fps + 0.5)
	if framesPerSec == 0 {
		framesPerSec = 1
	}
	totalFrames := position
	if sep == ';' {
		// Drop-frame: re-insert the two frame numbers skipped at the start of
		// every minute except every tenth one, mirroring parseSMPTE.
		perMin := framesPerSec*60 - 2
		per10Min := framesPerSec*600 - 18
		tens := totalFrames / per10Min
		rem := totalFrames % per10Min
		totalFrames += 18 * tens
		if rem > 2 {
			totalFrames += 2 * ((rem - 2) / perMin)
		}
	}
	ff := totalFrames % framesPerSec
	totalSeconds := totalFrames / framesPerSec
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%02d", h, m, s, sep, ff)
}
