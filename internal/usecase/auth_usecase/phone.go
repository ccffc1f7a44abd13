package auth

import (
	"regexp"
	"strings"
)

var indianMobile = regexp.MustCompile(`^\+91[0-9]{10}$`)

// 国番号なしは+91を付ける。
func NormalizePhone(raw string) (string, bool) {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	switch {
	case p == "":
		return "", false
	case strings.HasPrefix(p, "+91"):
	case strings.HasPrefix(p, "91") && len(p) == 12:
		p = "+" + p
	case strings.HasPrefix(p, "0") && len(p) == 11:
		p = "+91" + p[1:]
	default:
		p = "+91" + p
	}
	return p, indianMobile.MatchString(p)
}
