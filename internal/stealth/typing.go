package stealth

import (
	"context"
	"fmt"
	"time"
	"unicode"
)

type cadence struct {
	min, max time.Duration
}

var cadences = map[Personality]cadence{
	Careful: {120 * time.Millisecond, 260 * time.Millisecond},
	Normal:  {70 * time.Millisecond, 180 * time.Millisecond},
	Fast:    {40 * time.Millisecond, 110 * time.Millisecond},
}

// qwertyNeighbors lists the keys physically adjacent to each letter
var qwertyNeighbors = map[rune]string{
	'a': "qwsz", 'b': "vghn", 'c': "xdfv", 'd': "serfcx",
	'e': "wsdr", 'f': "drtgvc", 'g': "ftyhbv", 'h': "gyujnb",
	'i': "ujko", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'm': "njk", 'n': "bhjm", 'o': "iklp", 'p': "ol",
	'q': "wa", 'r': "edft", 's': "awedxz", 't': "rfgy",
	'u': "yhji", 'v': "cfgb", 'w': "qase", 'x': "zsdc",
	'y': "tghu", 'z': "asx",
}

// Type enters text through d one character at a time with human cadence.
// Whitespace and punctuation get an extra pause, and with probability typoRate a
// neighboring key is typed first and then erased.
func (e *Emulator) Type(ctx context.Context, d Driver, text string) error {
	c, ok := cadences[e.personality]
	if !ok {
		c = cadences[Normal]
	}

	for _, r := range text {
		if typo, ok := e.maybeTypo(r); ok {
			if err := d.InsertText(ctx, string(typo)); err != nil {
				return fmt.Errorf("failed to type: %w", err)
			}
			if err := e.Pause(ctx, 150*time.Millisecond, 400*time.Millisecond); err != nil {
				return err
			}
			if err := d.PressBackspace(ctx); err != nil {
				return fmt.Errorf("failed to erase typo: %w", err)
			}
			if err := e.Pause(ctx, c.min, c.max); err != nil {
				return err
			}
		}

		if err := d.InsertText(ctx, string(r)); err != nil {
			return fmt.Errorf("failed to type: %w", err)
		}
		if err := e.Pause(ctx, c.min, c.max); err != nil {
			return err
		}

		switch {
		case unicode.IsSpace(r):
			err := e.Pause(ctx, 80*time.Millisecond, 250*time.Millisecond)
			if err != nil {
				return err
			}
		case unicode.IsPunct(r):
			err := e.Pause(ctx, 200*time.Millisecond, 500*time.Millisecond)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// maybeTypo decides whether r is mistyped and returns the wrong key to press
func (e *Emulator) maybeTypo(r rune) (rune, bool) {
	neighbors, ok := qwertyNeighbors[unicode.ToLower(r)]
	if !ok || e.float64() >= e.typoRate {
		return 0, false
	}
	typo := rune(neighbors[e.intn(len(neighbors))])
	if unicode.IsUpper(r) {
		typo = unicode.ToUpper(typo)
	}
	return typo, true
}

// AdjacentKeys returns the neighbors used for typos of r, lowercase
func AdjacentKeys(r rune) string {
	return qwertyNeighbors[unicode.ToLower(r)]
}
