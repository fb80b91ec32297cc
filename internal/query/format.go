package query

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const maxCellWidth = 100

// NoResults is rendered for a successful query that matched nothing.
const NoResults = "Query returned no results."

// Normalize converts driver values into plain JSON-friendly Go values:
// numerics become float64, byte slices strings, UUIDs their text form.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case float32:
		return float64(val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float64, bool, string:
		return val
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return Normalize(dv)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatValue renders one cell for the composition prompt. Floats are
// rounded to two decimals; whole floats drop the decimals.
func FormatValue(v any) string {
	switch val := Normalize(v).(type) {
	case nil:
		return "NULL"
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return strconv.FormatFloat(val, 'f', -1, 64)
		}
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatFloat(val, 'f', 0, 64)
		}
		return strconv.FormatFloat(val, 'f', 2, 64)
	default:
		s := fmt.Sprintf("%v", val)
		if len(s) > maxCellWidth {
			s = Clip(s, maxCellWidth-3) + "..."
		}
		return s
	}
}

// Clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Render produces the text form of a result that is embedded in the
// composition prompt.
func Render(r Result) string {
	if r.Err != "" {
		return "Error: " + r.Err
	}
	if len(r.Rows) == 0 {
		return NoResults
	}

	var sb strings.Builder
	sb.WriteString("Columns: ")
	sb.WriteString(strings.Join(r.Columns, " | "))
	sb.WriteString("\n")

	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString("\n")
	}

	if r.Truncated {
		fmt.Fprintf(&sb, "... more rows omitted (showing first %d)\n", len(r.Rows))
	}
	return sb.String()
}
