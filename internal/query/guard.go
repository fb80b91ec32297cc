package query

import (
	"strings"
	"unicode"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
)

// allowedFirst lists the statement keywords the read-only guard accepts.
var allowedFirst = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"VALUES":  true,
	"TABLE":   true,
	"SHOW":    true,
	"EXPLAIN": true,
}

// forbidden are data- or schema-modifying keywords. A keyword directly
// followed by "(" is a function call (REPLACE(...), LEFT(...)) and is allowed.
var forbidden = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"REPLACE": true, "INTO": true, "DROP": true, "ALTER": true, "CREATE": true,
	"TRUNCATE": true, "RENAME": true, "GRANT": true, "REVOKE": true, "COPY": true,
	"CALL": true, "EXEC": true, "EXECUTE": true, "DO": true, "LOCK": true,
	"VACUUM": true, "ANALYZE": true, "REINDEX": true, "CLUSTER": true,
	"COMMENT": true, "SET": true, "RESET": true, "LOAD": true, "HANDLER": true,
	"ATTACH": true, "DETACH": true, "REFRESH": true, "LISTEN": true, "NOTIFY": true,
}

// CheckReadOnly rejects anything but a single read statement. String
// literals, quoted identifiers and comments are ignored when looking for
// keywords, following the lexical rules of d.
func CheckReadOnly(sql string, d database.Dialect) error {
	clean := strings.TrimSpace(Sanitize(sql, d))
	clean = strings.TrimSpace(strings.TrimRight(clean, "; \t\r\n"))
	if clean == "" {
		return errs.New(errs.ErrKindInvalidInput, "empty statement")
	}
	if strings.Contains(clean, ";") {
		return errs.New(errs.ErrKindInvalidInput, "only a single statement is allowed")
	}

	words := keywords(clean)
	if len(words) == 0 || !allowedFirst[words[0].word] {
		return errs.New(errs.ErrKindPermissionDenied, "only read-only statements are allowed")
	}
	for _, w := range words {
		if forbidden[w.word] && !w.call {
			return errs.Newf(errs.ErrKindPermissionDenied, "statement contains forbidden keyword %s", w.word)
		}
	}
	return nil
}

type keyword struct {
	word  string
	pos   int  // byte offset in the sanitized text
	depth int  // parenthesis depth
	call  bool // directly followed by "("
}

// keywords splits sanitized SQL into upper-cased bare words with their
// nesting depth.
func keywords(clean string) []keyword {
	var (
		out   []keyword
		depth int
		start = -1
	)
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := keyword{word: strings.ToUpper(clean[start:end]), pos: start, depth: depth}
		rest := strings.TrimLeft(clean[end:], " \t\r\n")
		w.call = strings.HasPrefix(rest, "(")
		out = append(out, w)
		start = -1
	}

	for i, r := range clean {
		isWord := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	flush(len(clean))
	return out
}

// Sanitize blanks out string literals, quoted identifiers, comments and,
// for PostgreSQL, dollar-quoted bodies, keeping offsets intact. Backslash
// escapes are honoured only where the dialect treats them as escapes: any
// MySQL string, and PostgreSQL E'...' literals.
func Sanitize(sql string, d database.Dialect) string {
	b := []byte(sql)
	n := len(b)
	mysql := d == database.DialectMySQL
	blank := func(from, to int) {
		for k := from; k < to && k < n; k++ {
			if b[k] != '\n' {
				b[k] = ' '
			}
		}
	}

	for i := 0; i < n; {
		switch {
		case b[i] == '-' && i+1 < n && b[i+1] == '-':
			j := i
			for j < n && b[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case b[i] == '#' && mysql:
			j := i
			for j < n && b[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case b[i] == '/' && i+1 < n && b[i+1] == '*':
			j := i + 2
			for j+1 < n && !(b[j] == '*' && b[j+1] == '/') {
				j++
			}
			j = min(j+2, n)
			blank(i, j)
			i = j
		case b[i] == '\'' || b[i] == '"' || b[i] == '`':
			q := b[i]
			escapes := q != '`' && mysql
			if q == '\'' && !mysql {
				escapes = escapePrefixed(b, i)
			}
			j := i + 1
			for j < n {
				if escapes && b[j] == '\\' && j+1 < n {
					j += 2
					continue
				}
				if b[j] == q {
					if j+1 < n && b[j+1] == q {
						j += 2
						continue
					}
					break
				}
				j++
			}
			j = min(j+1, n)
			blank(i+1, j-1)
			i = j
		case b[i] == '$' && !mysql:
			j := i + 1
			for j < n && (b[j] == '_' || unicode.IsLetter(rune(b[j])) || unicode.IsDigit(rune(b[j]))) {
				j++
			}
			if j < n && b[j] == '$' {
				tag := string(b[i : j+1])
				end := strings.Index(string(b[j+1:]), tag)
				if end < 0 {
					blank(i, n)
					i = n
				} else {
					stop := j + 1 + end + len(tag)
					blank(i, stop)
					i = stop
				}
				continue
			}
			i = j
		default:
			i++
		}
	}
	return string(b)
}

// escapePrefixed reports whether the quote at b[i] opens a PostgreSQL
// escape string constant (E'...').
func escapePrefixed(b []byte, i int) bool {
	if i == 0 || (b[i-1] != 'E' && b[i-1] != 'e') {
		return false
	}
	if i == 1 {
		return true
	}
	p := rune(b[i-2])
	return p != '_' && p != '$' && !unicode.IsLetter(p) && !unicode.IsDigit(p)
}
