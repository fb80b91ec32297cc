package query

import (
	"strconv"
	"strings"

	"github.com/koustreak/greeny/internal/database"
)

// EnsureLimit appends "LIMIT n" to a top-level SELECT (or WITH … SELECT)
// that has no limiting clause of its own. A top-level OFFSET keeps its place
// after the new LIMIT, which MySQL requires. Other statements and statements
// already limited by LIMIT, FETCH FIRST/NEXT or TOP are returned unchanged
// apart from a trailing semicolon.
func EnsureLimit(sql string, n int, d database.Dialect) string {
	trimmed := strings.TrimSpace(sql)
	trimmed = strings.TrimSpace(strings.TrimRight(trimmed, "; \t\r\n"))
	if n <= 0 || trimmed == "" {
		return trimmed
	}

	clean := Sanitize(trimmed, d)
	words := keywords(clean)
	if len(words) == 0 || (words[0].word != "SELECT" && words[0].word != "WITH") {
		return trimmed
	}
	for i, w := range words {
		if w.depth != 0 {
			continue
		}
		switch w.word {
		case "LIMIT", "TOP":
			return trimmed
		case "FETCH":
			if i+1 < len(words) && (words[i+1].word == "FIRST" || words[i+1].word == "NEXT") {
				return trimmed
			}
		}
	}

	limit := "LIMIT " + strconv.Itoa(n)
	if at := topLevelOffset(clean); at >= 0 {
		return appendClause(strings.TrimRight(trimmed[:at], " \t\r\n"), limit, d) + " " + trimmed[at:]
	}
	return appendClause(trimmed, limit, d)
}

func appendClause(sql, clause string, d database.Dialect) string {
	// A trailing line comment would swallow the clause.
	if endsWithLineComment(sql, d) {
		return sql + "\n" + clause
	}
	return sql + " " + clause
}

// topLevelOffset returns the byte offset of the last OFFSET keyword outside
// parentheses in sanitized SQL, or -1.
func topLevelOffset(clean string) int {
	at := -1
	for _, w := range keywords(clean) {
		if w.depth == 0 && w.word == "OFFSET" {
			at = w.pos
		}
	}
	return at
}

func endsWithLineComment(sql string, d database.Dialect) bool {
	line := sql[strings.LastIndex(sql, "\n")+1:]
	clean := strings.TrimRight(Sanitize(line, d), " \t\r")
	rest := strings.TrimLeft(line[len(clean):], " \t")
	return strings.HasPrefix(rest, "--") || strings.HasPrefix(rest, "#")
}
