package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 22

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag := map[statusKind]string{statusOK: "OK", statusWarn: "WARN", statusError: "ERROR"}[kind]
	if tag == "" {
		tag = "INFO"
	}
	status := "[" + tag + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	if !colorize {
		return line
	}
	switch kind {
	case statusOK:
		return ansiGreen + line + ansiReset
	case statusWarn:
		return ansiYellow + line + ansiReset
	case statusError:
		return ansiRed + line + ansiReset
	}
	return line
}

func printSection(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, rule)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
