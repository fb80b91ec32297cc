package pipeline

import "strings"

// extractJSON returns the first JSON object in a model response: the body of
// a ```json fence, a generic fence holding an object, or the first balanced
// {...} in the text. It returns "" when there is none.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if body, ok := fenced(response, "```json"); ok {
		return firstObject(body)
	}
	if body, ok := fenced(response, "```"); ok && strings.HasPrefix(body, "{") {
		return firstObject(body)
	}

	if start := strings.Index(response, "{"); start != -1 {
		return firstObject(response[start:])
	}
	return ""
}

func fenced(s, open string) (string, bool) {
	start := strings.Index(s, open)
	if start == -1 {
		return "", false
	}
	start += len(open)
	end := strings.Index(s[start:], "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(s[start : start+end]), true
}

// firstObject scans a balanced object starting at s[0], skipping braces
// inside strings.
func firstObject(s string) string {
	if s == "" || s[0] != '{' {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// cleanSQL strips code fences, a leading "SQLQuery:" label and trailing
// semicolons from a synthesized query.
func cleanSQL(raw string) string {
	sql := strings.TrimSpace(raw)

	if body, ok := fenced(sql, "```sql"); ok {
		sql = body
	} else if body, ok := fenced(sql, "```"); ok {
		sql = body
	}

	for _, label := range []string{"SQLQuery:", "SQL Query:", "SQL:"} {
		if len(sql) >= len(label) && strings.EqualFold(sql[:len(label)], label) {
			sql = strings.TrimSpace(sql[len(label):])
			break
		}
	}

	sql = strings.TrimSpace(sql)
	for strings.HasSuffix(sql, ";") {
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	return sql
}
