// Package textnorm turns extracted text of unknown encoding into clean UTF-8
// restricted to the Basic Multilingual Plane.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

const maxBMP = 0xFFFF

// Normalize returns raw as NFC-composed UTF-8 with NUL and every rune above
// U+FFFF removed. Input that is not valid UTF-8 is decoded from its detected
// charset; bytes that cannot be decoded are dropped. Normalize never fails and
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := raw
	if !utf8.ValidString(s) {
		s = decode([]byte(raw))
	}
	s = strings.Map(func(r rune) rune {
		if r == 0 || r > maxBMP {
			return -1
		}
		return r
	}, s)
	return norm.NFC.String(s)
}

func decode(b []byte) string {
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err == nil && res != nil && !strings.EqualFold(res.Charset, "UTF-8") {
		if enc, err := htmlindex.Get(res.Charset); err == nil {
			if out, err := enc.NewDecoder().Bytes(b); err == nil {
				return strings.ToValidUTF8(string(out), "")
			}
		}
	}
	return strings.ToValidUTF8(string(b), "")
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
