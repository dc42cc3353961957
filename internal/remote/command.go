// Package remote runs PowerShell commands on a Windows host.
//
// Commands are typed descriptors (a script body plus named parameters). The
// session renders the descriptor into a self-contained PowerShell program so
// no caller ever interpolates parameter values into script text.
package remote

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorLinePrefix marks lines that carry a PowerShell error record.
const ErrorLinePrefix = "##WINCERT-ERROR## "

// Param is a named script parameter. Values are always passed as strings.
type Param struct {
	Name  string
	Value string
}

// Command is a remote script invocation.
type Command struct {
	// Name identifies the command for logging, metrics and test fakes,
	// e.g. "certstore.list".
	Name string

	// Script is a PowerShell script block body. It may start with a
	// param(...) block naming the entries of Params.
	Script string

	Params []Param
}

// Param returns the value of the named parameter, or "" if absent.
func (c Command) Param(name string) string {
	for _, p := range c.Params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// HasParam reports whether the named parameter is set.
func (c Command) HasParam(name string) bool {
	for _, p := range c.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

var paramNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// psQuoteReplacer doubles every character PowerShell accepts as a single
// quote, including the typographic variants.
var psQuoteReplacer = strings.NewReplacer(
	"'", "''",
	"‘", "‘‘",
	"’", "’’",
	"‚", "‚‚",
	"‛", "‛‛",
)

// Quote returns s as a PowerShell single-quoted literal.
func Quote(s string) string {
	return "'" + psQuoteReplacer.Replace(s) + "'"
}

// Render produces the PowerShell program that runs cmd. Error records
// written by the script, and terminating errors, are emitted on stdout as
// ErrorLinePrefix lines so that they survive any transport.
func Render(cmd Command) (string, error) {
	var b strings.Builder

	b.WriteString("$ProgressPreference = 'SilentlyContinue'\n")
	b.WriteString(renderErrorFunc)
	b.WriteString("$__wincertParams = @{\n")
	for _, p := range cmd.Params {
		if !paramNamePattern.MatchString(p.Name) {
			return "", fmt.Errorf("invalid parameter name %q in command %s", p.Name, cmd.Name)
		}
		fmt.Fprintf(&b, "    %s = %s\n", Quote(p.Name), Quote(p.Value))
	}
	b.WriteString("}\n")
	b.WriteString("try {\n")
	b.WriteString("    & {\n")
	b.WriteString(cmd.Script)
	b.WriteString("\n    } @__wincertParams 2>&1 | ForEach-Object {\n")
	b.WriteString("        if ($_ -is [System.Management.Automation.ErrorRecord]) { __wincertError $_ } else { \"$_\" }\n")
	b.WriteString("    }\n")
	b.WriteString("} catch {\n")
	b.WriteString("    __wincertError $_\n")
	b.WriteString("}\n")

	return b.String(), nil
}

const renderErrorFunc = `function __wincertError($record) {
    $msg = $null
    if ($record.ErrorDetails -and $record.ErrorDetails.Message) { $msg = $record.ErrorDetails.Message }
    elseif ($record.Exception) { $msg = $record.Exception.Message }
    else { $msg = "$record" }
    '` + ErrorLinePrefix + `' + ($msg -replace "\r?\n", ' ')
}
`

// bootstrapScript reads the rendered program from stdin and runs it. Sending
// the program over stdin avoids command-line length limits for large
// payloads such as staged certificate files.
const bootstrapScript = `$__wincertScript = [Console]::In.ReadToEnd(); & ([scriptblock]::Create($__wincertScript))`

// ParseOutput splits raw stdout into output lines and error messages.
func ParseOutput(stdout string) *Result {
	res := &Result{}
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")

	// Drop the trailing newline(s) of the stream but keep interior blanks.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if msg, ok := strings.CutPrefix(line, ErrorLinePrefix); ok {
			res.Errors = append(res.Errors, msg)
			continue
		}
		res.Output = append(res.Output, line)
	}
	return res
}
