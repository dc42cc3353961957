// Package psoutput classifies the text output of remote PowerShell scripts.
//
// Every script that wraps a native utility appends a final line of the form
//
//	LASTEXITCODE:<n>
//
// so the exit code can be recovered regardless of how many lines the
// utility printed itself. ExitMarkerScript is the snippet that does this.
package psoutput

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ExitMarkerKey is the first field of the trailing exit-code marker.
const ExitMarkerKey = "LASTEXITCODE"

// ExitMarkerScript appends the exit-code marker to $output. A single string
// result is coerced into a two-element array, any other result gets the
// marker appended as an additional element.
const ExitMarkerScript = `
$exit_message = "LASTEXITCODE:$($LASTEXITCODE)"
if ($null -eq $output) {
    $output = @($exit_message)
}
elseif ($output.GetType().Name -eq "String") {
    $output = @($output, $exit_message)
}
else {
    $output += $exit_message
}
$output
`

// ErrMalformedExitMarker indicates the final output line is not a valid
// LASTEXITCODE marker.
var ErrMalformedExitMarker = errors.New("malformed exit marker")

// errorSubstrings are the diagnostic phrases certutil prints on failure even
// when it exits with 0. The match is case-sensitive on purpose.
var errorSubstrings = []string{"Error", "permissions are needed"}

// Outcome is the classified result of one remote command.
type Outcome struct {
	ExitCode int
	Lines    []string
	IsError  bool
}

// Diagnostics returns the non-empty output lines joined by newlines.
func (o Outcome) Diagnostics() string {
	var b strings.Builder
	for _, line := range o.Lines {
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// ErrorLines returns the lines that matched the error heuristic.
func (o Outcome) ErrorLines() []string {
	var out []string
	for _, line := range o.Lines {
		if LineSignalsError(line) {
			out = append(out, line)
		}
	}
	return out
}

// ParseExitMarker parses "LASTEXITCODE:<n>". The line must split on ':' into
// exactly two fields and the second must be a base-10 integer.
func ParseExitMarker(line string) (int, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 2 || parts[0] != ExitMarkerKey {
		return 0, fmt.Errorf("%w: %q", ErrMalformedExitMarker, line)
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid exit code %q", ErrMalformedExitMarker, parts[1])
	}
	return code, nil
}

// Classify extracts the exit code from the last line and decides whether the
// command failed. A nonzero exit code is conclusive; with exit code 0 the
// lines are scanned with LineSignalsError.
func Classify(lines []string) (Outcome, error) {
	if len(lines) == 0 {
		return Outcome{}, fmt.Errorf("%w: no output", ErrMalformedExitMarker)
	}

	code, err := ParseExitMarker(lines[len(lines)-1])
	if err != nil {
		return Outcome{Lines: lines, IsError: true}, err
	}

	out := Outcome{ExitCode: code, Lines: lines}
	if code != 0 {
		out.IsError = true
		return out, nil
	}

	for _, line := range lines {
		if LineSignalsError(line) {
			out.IsError = true
			break
		}
	}
	return out, nil
}

// LineSignalsError reports whether an output line carries one of the
// utility's failure phrases.
//
// The empty-line guard only applies to the "Error" check; the permissions
// check runs regardless. Both forms behave the same on empty input.
func LineSignalsError(line string) bool {
	return (line != "" && strings.Contains(line, errorSubstrings[0])) ||
		strings.Contains(line, errorSubstrings[1])
}

// AppendExitMarker returns lines with a marker for code appended. Test and
// local shims use it to mimic remote script output.
func AppendExitMarker(lines []string, code int) []string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines...)
	return append(out, fmt.Sprintf("%s:%d", ExitMarkerKey, code))
}
