package sheets

import "regexp"

func mustRegexp(expr string) *regexp.Regexp {
	return regexp.MustCompile(expr)
}
