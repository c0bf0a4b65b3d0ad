package metrics

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// MaxLabelLength is the maximum length for a Prometheus label value.
const MaxLabelLength = 128

// labelSanitizeRegex matches characters not allowed in a Prometheus label.
var labelSanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)

// SanitizeLabel sanitizes a string (service name, node name, container id)
// for use as a Prometheus label value, reporting whether it changed.
func SanitizeLabel(value string) (string, bool) {
	if value == "" {
		return "unknown", true
	}

	original := value
	if labelSanitizeRegex.MatchString(value) {
		value = labelSanitizeRegex.ReplaceAllString(value, "_")
	}
	if len(value) > MaxLabelLength {
		value = value[:MaxLabelLength]
	}
	if value == "" {
		return "unknown", true
	}

	return value, value != original
}

// SanitizeLabelWithLog sanitizes a label value and logs when it was changed.
func SanitizeLabelWithLog(value, labelName string, logger *zap.Logger) string {
	sanitized, changed := SanitizeLabel(value)
	if changed {
		logger.Warn("sanitized metric label value",
			zap.String("label", labelName),
			zap.String("original", value),
			zap.String("sanitized", sanitized),
			zap.String("reason", sanitizationReason(value, sanitized)),
		)
	}
	return sanitized
}

func sanitizationReason(original, sanitized string) string {
	var reasons []string
	if len(original) > MaxLabelLength {
		reasons = append(reasons, "exceeded_max_length")
	}
	if labelSanitizeRegex.MatchString(original) {
		reasons = append(reasons, "invalid_characters")
	}
	if original == "" {
		reasons = append(reasons, "empty_value")
	}
	if len(reasons) == 0 {
		return "unknown"
	}
	return strings.Join(reasons, ",")
}
