package main

import "strings"

var tagReplacer = strings.NewReplacer("<b>", "", "</b>", "")

// stripTags removes the Telegram HTML markup from a report for terminal output.
func stripTags(s string) string {
	return tagReplacer.Replace(s)
}
