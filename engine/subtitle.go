package engine

import (
	"fmt"
	"strings"

	"novel2video/models"
)

var sentenceEnders = []rune{'。', '！', '？', '.', '!', '?'}
var clauseBreaks = []rune{'，', ','}

// SubtitleTimeline splits narration into timed cues proportional to
// sentence length.
type SubtitleTimeline struct {
	cfg models.SubtitleConfig
}

// NewSubtitleTimeline builds a timeline from subtitle config.
func NewSubtitleTimeline(cfg models.SubtitleConfig) *SubtitleTimeline {
	return &SubtitleTimeline{cfg: cfg}
}

// Build lays cues over [0, total]. Each sentence gets time proportional to
// its share of the text, clamped to the cue bounds. Cues after the first
// start half the fade time late so their fade-in lands on screen, but each
// cue still ends on the un-shifted grid: the shift never accumulates, so
// the last cue ends with the audio.
func (t *SubtitleTimeline) Build(narration string, total float64) []models.SubtitleCue {
	sentences := t.splitSentences(narration)
	if len(sentences) == 0 || total <= 0 {
		return nil
	}

	totalLen := 0
	for _, s := range sentences {
		totalLen += len([]rune(s))
	}
	if totalLen == 0 {
		return nil
	}

	cues := make([]models.SubtitleCue, 0, len(sentences))
	cursor := 0.0
	for i, s := range sentences {
		d := total * float64(len([]rune(s))) / float64(totalLen)
		if d < t.cfg.MinCueSeconds {
			d = t.cfg.MinCueSeconds
		}
		if d > t.cfg.MaxCueSeconds {
			d = t.cfg.MaxCueSeconds
		}

		end := cursor + d
		start := cursor
		if i > 0 {
			start += t.cfg.FadeSeconds * 0.5
		}

		cues = append(cues, models.SubtitleCue{
			Index: i + 1,
			Start: start,
			End:   end,
			Text:  t.wrap(s),
		})
		cursor = end
	}

	return cues
}

// splitSentences cuts narration at sentence enders, then sub-splits
// anything still longer than the sentence cap at clause breaks.
func (t *SubtitleTimeline) splitSentences(narration string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range narration {
		if isEnder(r) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	var out []string
	for _, s := range sentences {
		if len([]rune(s)) <= t.cfg.MaxSentenceLen {
			out = append(out, s)
			continue
		}
		out = append(out, splitClauses(s, t.cfg.MaxSentenceLen)...)
	}
	return out
}

func splitClauses(s string, maxLen int) []string {
	var parts []string
	var current strings.Builder

	for _, r := range s {
		if isClauseBreak(r) && len([]rune(current.String())) > 0 {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		parts = append(parts, p)
	}

	if len(parts) <= 1 {
		return []string{s}
	}

	// Re-join adjacent short clauses so we don't flash tiny cues.
	var merged []string
	acc := ""
	for _, p := range parts {
		if acc == "" {
			acc = p
		} else if len([]rune(acc))+len([]rune(p)) <= maxLen {
			acc += p
		} else {
			merged = append(merged, acc)
			acc = p
		}
	}
	if acc != "" {
		merged = append(merged, acc)
	}
	return merged
}

// wrap breaks a long cue into two lines at a space or comma near the
// midpoint, falling back to a hard midpoint break.
func (t *SubtitleTimeline) wrap(text string) string {
	runes := []rune(text)
	if len(runes) <= t.cfg.MaxLineLength {
		return text
	}

	mid := len(runes) / 2
	breakAt := -1
	for offset := 0; offset <= 3; offset++ {
		for _, pos := range []int{mid + offset, mid - offset} {
			if pos <= 0 || pos >= len(runes) {
				continue
			}
			if runes[pos] == ' ' || isClauseBreak(runes[pos]) {
				breakAt = pos
				break
			}
		}
		if breakAt >= 0 {
			break
		}
	}

	if breakAt < 0 {
		return string(runes[:mid]) + "\n" + string(runes[mid:])
	}
	first := strings.TrimSpace(string(runes[:breakAt+1]))
	second := strings.TrimSpace(string(runes[breakAt+1:]))
	if second == "" {
		return first
	}
	return first + "\n" + second
}

// SRT serializes cues in SubRip format.
func (t *SubtitleTimeline) SRT(cues []models.SubtitleCue) string {
	var b strings.Builder
	for _, cue := range cues {
		b.WriteString(fmt.Sprintf("%d\n", cue.Index))
		b.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(cue.Start), formatSRTTime(cue.End)))
		b.WriteString(cue.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func isEnder(r rune) bool {
	for _, e := range sentenceEnders {
		if r == e {
			return true
		}
	}
	return false
}

func isClauseBreak(r rune) bool {
	for _, c := range clauseBreaks {
		if r == c {
			return true
		}
	}
	return false
}
