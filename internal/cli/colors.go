package cli

// ANSI color codes for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
)

// FormatStatus returns a colored status string.
func FormatStatus(status string) string {
	switch status {
	case "valid", "ok", "success":
		return ColorGreen + status + ColorReset
	case "expired", "failed", "failure":
		return ColorRed + status + ColorReset
	case "expiring", "skipped":
		return ColorYellow + status + ColorReset
	default:
		return status
	}
}
