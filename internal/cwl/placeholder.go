package cwl

import (
	"os"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`<<([A-Z][A-Z0-9_]*)>>`)

// SubstitutePlaceholders replaces every <<NAME>> marker in a CWL document
// with the value of the NAME environment variable. Unset names substitute
// to the empty string, leaving the surrounding quotes intact.
func SubstitutePlaceholders(doc []byte) []byte {
	return placeholderPattern.ReplaceAllFunc(doc, func(m []byte) []byte {
		name := placeholderPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
