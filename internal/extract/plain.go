package extract

import "strings"

// extractPlain returns content as text with invalid UTF-8 replaced by U+FFFD.
func extractPlain(content []byte) (string, error) {
	return strings.ToValidUTF8(string(content), "\ufffd"), nil
}
