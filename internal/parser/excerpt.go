package parser

import "unicode/utf8"

const excerptRadius = 40

// excerpt returns up to excerptRadius bytes either side of offset, snapped to
// rune boundaries.
func excerpt(s string, offset int) string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s) {
		offset = len(s)
	}
	from := offset - excerptRadius
	if from < 0 {
		from = 0
	}
	to := offset + excerptRadius
	if to > len(s) {
		to = len(s)
	}
	for from > 0 && !utf8.RuneStart(s[from]) {
		from--
	}
	for to < len(s) && !utf8.RuneStart(s[to]) {
		to++
	}
	return s[from:to]
}
