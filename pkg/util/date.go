package util

import (
	"strings"
	"time"
)

// Longer placeholders come first so "YYYY" never matches as two "YY".
var dateTpl = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"hh", "15",
	"mm", "04",
	"ss", "05",
)

// FormatDateTpl formats a Unix millisecond timestamp in UTC using a template
// with placeholders: YYYY, YY, MM, DD, hh, mm, ss. It returns "" for ts == 0.
//
//	FormatDateTpl(1699603200000, "YYYY.MM.DD")       // "2023.11.10"
//	FormatDateTpl(1699603200000, "DD/MM/YYYY hh:mm") // "10/11/2023 08:00"
func FormatDateTpl(ts int64, tpl string) string {
	if ts == 0 {
		return ""
	}
	return time.UnixMilli(ts).UTC().Format(dateTpl.Replace(tpl))
}
