package validation

import (
	"fmt"
	"strings"

	"underwrite/pkg/constants"
)

// ResolveOutputFormat normalizes a configured output format to its canonical
// name, case-insensitively. The empty string resolves to the pretty format.
func ResolveOutputFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", constants.OutputFormatPretty:
		return constants.OutputFormatPretty, nil
	case constants.OutputFormatCSV:
		return constants.OutputFormatCSV, nil
	default:
		return "", fmt.Errorf("expected output format of %s or %s, got %s",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
}
