package catalog

import (
	"regexp"
	"strings"

	"github.com/sw33tLie/lifescore/pkg/errs"
)

// PlatformRule maps a keyword pattern over the joined platform descriptor
// to a platform id.
type PlatformRule struct {
	Platform string
	Pattern  *regexp.Regexp
}

func rule(platform, pattern string) PlatformRule {
	return PlatformRule{Platform: platform, Pattern: regexp.MustCompile(pattern)}
}

// DefaultPlatformRules is evaluated in order and the first match wins, so
// more specific systems must come before the families that contain them
// ("super famicom" before "famicom", "game boy advance" before "game boy").
var DefaultPlatformRules = []PlatformRule{
	rule("ps5", `\bps5\b|playstation ?5`),
	rule("ps4", `\bps4\b|playstation ?4`),
	rule("ps3", `\bps3\b|playstation ?3`),
	rule("psvita", `\bvita\b`),
	rule("psp", `\bpsp\b|playstation portable`),
	rule("ps2", `\bps2\b|playstation ?2`),
	rule("ps1", `\bps1\b|\bpsx\b|playstation`),
	rule("xbsx", `xbox series`),
	rule("xbone", `xbox one`),
	rule("x360", `xbox ?360`),
	rule("xbox", `\bxbox\b`),
	rule("switch", `\bswitch\b`),
	rule("3ds", `\b3ds\b`),
	rule("nds", `\bnds\b|nintendo ds\b`),
	rule("wiiu", `\bwii ?u\b`),
	rule("wii", `\bwii\b`),
	rule("gamecube", `gamecube|\bngc\b`),
	rule("n64", `nintendo 64|\bn64\b`),
	rule("gba", `game ?boy advance|\bgba\b`),
	rule("gbc", `game ?boy colou?r|\bgbc\b`),
	rule("gb", `game ?boy|\bgb\b`),
	rule("snes", `\bsnes\b|super nintendo|super famicom|\bsfc\b`),
	rule("nes", `\bnes\b|famicom|nintendo entertainment system`),
	rule("genesis", `genesis|mega ?drive`),
	rule("mastersystem", `master system`),
	rule("saturn", `\bsaturn\b`),
	rule("dreamcast", `dreamcast`),
	rule("pc", `\bpc\b|windows|steam|linux|mac ?os|\bdos\b`),
}

// ResolvePlatform joins every descriptor field and returns the platform id
// of the first matching rule.
func ResolvePlatform(rules []PlatformRule, fields ...string) (string, error) {
	if rules == nil {
		rules = DefaultPlatformRules
	}
	joined := strings.ToLower(strings.Join(nonEmpty(fields), " "))
	if joined == "" {
		return "", errs.Wrap(errs.ErrUnsupportedPlatform, "resolve platform", "empty descriptor", nil)
	}
	for _, r := range rules {
		if r.Pattern.MatchString(joined) {
			return r.Platform, nil
		}
	}
	return "", errs.Wrap(errs.ErrUnsupportedPlatform, "resolve platform", joined, nil)
}

func nonEmpty(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
