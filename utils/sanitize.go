package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML from user supplied text such as display names.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
