package storage

import "strings"

// isUniqueViolation reports whether err came from a UNIQUE constraint
// failure. modernc.org/sqlite surfaces the sqlite3 error text
// verbatim, so matching on it is more portable across driver point
// releases than depending on its internal error-code type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
