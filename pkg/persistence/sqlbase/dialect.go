package sqlbase

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the supported SQL databases.
type Dialect struct {
	Name string

	// Rebind rewrites "?" placeholders into the driver's own syntax.
	Rebind func(query string) string

	// IsUniqueViolation reports whether err is a primary key or unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// QuestionPlaceholders leaves "?" placeholders untouched.
func QuestionPlaceholders(query string) string {
	return query
}

// DollarPlaceholders numbers placeholders as $1, $2, ...
// Queries in this package never contain a literal "?".
func DollarPlaceholders(query string) string {
	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++

			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}
