package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxValueLength truncates long cell values before they reach a prompt.
const MaxValueLength = 300

// FormatRows renders rows as a list of tuples, e.g. [('ACME', 12.5), ('Globex', 9)].
// An empty result renders as the empty string.
func FormatRows(rows [][]any) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(v))
		}
		if len(row) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case []byte:
		return quote(string(x))
	case string:
		return quote(x)
	case time.Time:
		return quote(x.Format(time.RFC3339))
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	if len(s) > MaxValueLength {
		s = s[:MaxValueLength] + "..."
	}
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
