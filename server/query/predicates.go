package query

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// PruneFiles drops files whose partition values definitively fail a hint.
// Pruning is conservative: a hint that cannot be understood, references a
// non-partition column, or evaluates to unknown retains the file. False
// positives are acceptable, false negatives are not.
func PruneFiles(files []FileEntry, hints []string, jsonHints string, partitionColumns []string) []FileEntry {
	if len(hints) == 0 && jsonHints == "" {
		return files
	}

	kept := make([]FileEntry, 0, len(files))
	for _, f := range files {
		if filePassesHints(f, hints, jsonHints, partitionColumns) {
			kept = append(kept, f)
		}
	}
	return kept
}

func filePassesHints(f FileEntry, hints []string, jsonHints string, partitionColumns []string) bool {
	for _, hint := range hints {
		if matched, known := evalSQLHint(hint, f.PartitionValues, partitionColumns); known && !matched {
			return false
		}
	}
	if jsonHints != "" {
		root := gjson.Parse(jsonHints)
		if root.IsObject() {
			if matched, known := evalJSONPredicate(root, f.PartitionValues, partitionColumns); known && !matched {
				return false
			}
		}
	}
	return true
}

// evalSQLHint evaluates a simple "column op literal" hint against the
// partition values. The second return value reports whether the outcome is
// definitive.
func evalSQLHint(hint string, values map[string]string, partitionColumns []string) (bool, bool) {
	column, op, literal, ok := splitHint(hint)
	if !ok {
		return false, false
	}
	if !containsColumn(partitionColumns, column) {
		return false, false
	}
	actual, ok := values[column]
	if !ok {
		return false, false
	}
	return compare(actual, op, literal)
}

// splitHint parses "col op value", tolerating missing spaces around the
// operator and single or double quotes on the value
func splitHint(hint string) (column, op, literal string, ok bool) {
	operators := []string{"<=", ">=", "<>", "!=", "=", "<", ">"}

	trimmed := strings.TrimSpace(hint)
	for _, candidate := range operators {
		idx := strings.Index(trimmed, candidate)
		if idx <= 0 {
			continue
		}
		column = strings.TrimSpace(trimmed[:idx])
		literal = strings.TrimSpace(trimmed[idx+len(candidate):])
		if column == "" || literal == "" || strings.ContainsAny(column, " \t") {
			return "", "", "", false
		}
		literal = strings.Trim(literal, `'"`)
		return column, candidate, literal, true
	}
	return "", "", "", false
}

// compare evaluates actual op expected, numerically when both sides parse
// as numbers, lexically otherwise
func compare(actual, op, expected string) (bool, bool) {
	var cmp int
	if a, errA := strconv.ParseFloat(actual, 64); errA == nil {
		if b, errB := strconv.ParseFloat(expected, 64); errB == nil {
			switch {
			case a < b:
				cmp = -1
			case a > b:
				cmp = 1
			}
			return applyComparison(cmp, op)
		}
	}
	cmp = strings.Compare(actual, expected)
	return applyComparison(cmp, op)
}

func applyComparison(cmp int, op string) (bool, bool) {
	switch op {
	case "=":
		return cmp == 0, true
	case "<>", "!=":
		return cmp != 0, true
	case "<":
		return cmp < 0, true
	case "<=":
		return cmp <= 0, true
	case ">":
		return cmp > 0, true
	case ">=":
		return cmp >= 0, true
	}
	return false, false
}

// evalJSONPredicate walks a delta json predicate tree. Three-valued logic:
// the boolean result only counts when the second return value is true.
func evalJSONPredicate(node gjson.Result, values map[string]string, partitionColumns []string) (bool, bool) {
	op := node.Get("op").String()
	children := node.Get("children").Array()

	switch op {
	case "and":
		allKnown := true
		for _, child := range children {
			matched, known := evalJSONPredicate(child, values, partitionColumns)
			if known && !matched {
				return false, true
			}
			if !known {
				allKnown = false
			}
		}
		return true, allKnown
	case "or":
		allKnown := true
		for _, child := range children {
			matched, known := evalJSONPredicate(child, values, partitionColumns)
			if known && matched {
				return true, true
			}
			if !known {
				allKnown = false
			}
		}
		return false, allKnown
	case "not":
		if len(children) != 1 {
			return false, false
		}
		matched, known := evalJSONPredicate(children[0], values, partitionColumns)
		return !matched, known
	case "equal", "lessThan", "lessThanOrEqual", "greaterThan", "greaterThanOrEqual":
		if len(children) != 2 {
			return false, false
		}
		left, leftKnown := operandValue(children[0], values, partitionColumns)
		right, rightKnown := operandValue(children[1], values, partitionColumns)
		if !leftKnown || !rightKnown {
			return false, false
		}
		return compare(left, comparisonOperator(op), right)
	case "isNull":
		if len(children) != 1 {
			return false, false
		}
		name := children[0].Get("name").String()
		if children[0].Get("op").String() != "column" || !containsColumn(partitionColumns, name) {
			return false, false
		}
		v, ok := values[name]
		return ok && v == "", true
	}

	return false, false
}

func comparisonOperator(op string) string {
	switch op {
	case "equal":
		return "="
	case "lessThan":
		return "<"
	case "lessThanOrEqual":
		return "<="
	case "greaterThan":
		return ">"
	case "greaterThanOrEqual":
		return ">="
	}
	return ""
}

// operandValue resolves a column reference or literal leaf to a string
func operandValue(node gjson.Result, values map[string]string, partitionColumns []string) (string, bool) {
	switch node.Get("op").String() {
	case "column":
		name := node.Get("name").String()
		if !containsColumn(partitionColumns, name) {
			return "", false
		}
		v, ok := values[name]
		return v, ok
	case "literal":
		value := node.Get("value")
		if !value.Exists() {
			return "", false
		}
		return value.String(), true
	}
	return "", false
}
