package report

import (
	"strconv"

	"github.com/guregu/null/v6"
)

// cell renders a nullable metric for CSV, empty when null
func cell(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// nullable returns nil for a null metric so the XLSX cell stays blank
func nullable(v null.Float) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float64
}
