package main

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// colorEnabled is false when stdout is not a terminal, keeping piped output plain.
var colorEnabled = term.IsTerminal(int(os.Stdout.Fd()))

func styled(s, hex string) string {
	if !colorEnabled {
		return s
	}
	p := termenv.ColorProfile()
	return termenv.String(s).Foreground(p.Color(hex)).String()
}

func styleHeader(s string) string {
	if !colorEnabled {
		return s
	}
	return termenv.String(styled(s, "#a78bfa")).Bold().String()
}

func styleOK(s string) string    { return styled(s, "#4ade80") }
func styleError(s string) string { return styled(s, "#fb7185") }
func styleMuted(s string) string { return styled(s, "#94a3b8") }
