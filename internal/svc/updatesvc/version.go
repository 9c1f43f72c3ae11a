package updatesvc

import (
	"strconv"
	"strings"
)

// CompareVersions compares dotted version strings field by field and returns
// -1, 0 or 1. Missing and non-numeric fields count as 0, so "1.2" equals
// "1.2.0" and "1.x" equals "1.0". An empty version compares equal to anything.
func CompareVersions(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}

	fieldsA := strings.Split(a, ".")
	fieldsB := strings.Split(b, ".")

	for i := range max(len(fieldsA), len(fieldsB)) {
		x, y := versionField(fieldsA, i), versionField(fieldsB, i)

		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}

	return 0
}

func versionField(fields []string, i int) int64 {
	if i >= len(fields) {
		return 0
	}

	n, err := strconv.ParseInt(strings.TrimSpace(fields[i]), 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// normalizeVersion strips the "v" prefix release tags usually carry.
func normalizeVersion(tag string) string {
	tag = strings.TrimSpace(tag)

	return strings.TrimPrefix(strings.TrimPrefix(tag, "v"), "V")
}
