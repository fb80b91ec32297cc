package database

// ScanRows reads all rows from the result set and returns the column names
// plus one []any per row, in column order. Keeping order matters for
// rendering results back to a reader.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows; callers do not need to call Close().
// When limit > 0 at most limit rows are read and truncated reports whether
// more were available.
func ScanRows(rows Rows, limit int) (columns []string, out [][]any, truncated bool, err error) {
	defer rows.Close()

	columns, err = rows.Columns()
	if err != nil {
		return nil, nil, false, errQuery("failed to read column names", err)
	}

	out = make([][]any, 0)
	for rows.Next() {
		if limit > 0 && len(out) == limit {
			truncated = true
			break
		}

		// Scan targets are *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, nil, false, errQuery("failed to scan row", err)
		}
		out = append(out, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, false, errQuery("error during row iteration", err)
	}

	return columns, out, truncated, nil
}

// ScanMaps is ScanRows keyed by column name, for callers that serialise rows
// as JSON objects.
func ScanMaps(rows Rows) ([]map[string]any, error) {
	columns, values, _, err := ScanRows(rows, 0)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, 0, len(values))
	for _, v := range values {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = v[i]
		}
		result = append(result, row)
	}
	return result, nil
}
