// Package sanitize escapes user-supplied free text before it is stored or echoed back.
//
// ESCAPING RULES:
// Five characters are replaced with their HTML entity equivalents:
//
//	<  → &lt;
//	>  → &gt;
//	"  → &quot;
//	'  → &#x27;
//	/  → &#x2F;
//
// Backslashes and ampersands are left untouched. Idempotence is not part of
// the contract, so callers sanitize exactly once, at the validation boundary
// (see package validation).
package sanitize

import "strings"

// replacer is built once; strings.Replacer is safe for concurrent use.
var replacer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize returns text with the unsafe markup characters escaped.
func Sanitize(text string) string {
	return replacer.Replace(text)
}
