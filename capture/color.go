package capture

import (
	"strconv"
	"strings"
)

// ParseCSSColor parses the CSS color syntaxes that appear in capture
// payloads: #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(r, g, b), rgba(r, g, b, a)
// and the transparent keyword. Channels are normalized to [0, 1]. Returns
// ok=false for anything else (named colors beyond transparent, hsl, etc.).
func ParseCSSColor(s string) (Color, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "transparent":
		return Color{}, true
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseRGBFunc(s[4 : len(s)-1])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseRGBFunc(s[5 : len(s)-1])
	}
	return Color{}, false
}

func parseHex(hex string) (Color, bool) {
	// Expand short forms: abc → aabbcc, abcd → aabbccdd.
	if len(hex) == 3 || len(hex) == 4 {
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	}
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, false
	}
	var ch [4]float64
	ch[3] = 1
	for i := 0; i*2 < len(hex); i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, false
		}
		ch[i] = float64(v) / 255
	}
	return Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, true
}

func parseRGBFunc(args string) (Color, bool) {
	// rgb() with 4 args and rgba() with 3 both occur in the wild; accept
	// 3 or 4 regardless of function name.
	parts := strings.Split(args, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, false
	}
	var c Color
	c.A = 1
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == 3 {
			a, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return Color{}, false
			}
			c.A = clamp01(a)
			continue
		}
		var v float64
		if strings.HasSuffix(p, "%") {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
			if err != nil {
				return Color{}, false
			}
			v = pct / 100
		} else {
			n, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return Color{}, false
			}
			v = n / 255
		}
		v = clamp01(v)
		switch i {
		case 0:
			c.R = v
		case 1:
			c.G = v
		case 2:
			c.B = v
		}
	}
	return c, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
