package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	annotationPattern = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	editionPattern    = regexp.MustCompile(`[\s:\-–—]*\b(?:(?:game of the year|goty|digital deluxe|deluxe|definitive|complete|special|collector'?s|anniversary|standard|ultimate|gold|premium|enhanced|legendary|limited)\s+)?edition\s*$`)
	spacePattern      = regexp.MustCompile(`\s+`)
	tokenPattern      = regexp.MustCompile(`[^\p{L}\p{N}]+`)

	trademarkReplacer = strings.NewReplacer("™", "", "®", "", "©", "", "℠", "")
)

// NormalizeTitle reduces a raw provider or catalog title to the form used
// for matching: region and revision annotations, edition suffixes and
// trademark glyphs are removed, diacritics folded, whitespace collapsed
// and the result lowercased.
//
//	"Chrono Trigger (USA)"                -> "chrono trigger"
//	"Skyrim™ Special Edition [Rev 1]"     -> "skyrim"
func NormalizeTitle(raw string) string {
	s := foldDiacritics(raw)
	s = trademarkReplacer.Replace(s)
	s = annotationPattern.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = editionPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Tokenize splits a normalized title into its distinct words.
func Tokenize(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenPattern.Split(strings.ToLower(normalized), -1) {
		if tok == "" {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// Overlap scores two normalized titles as |A∩B| / max(|A|, |B|). Unlike
// Jaccard it rewards a short title that is fully contained in a long one.
func Overlap(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(shared) / float64(denom)
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
