package main

import (
	"fmt"
	"os"
	"strings"
)

// progressMode is the --ui setting of check: whether unit progress is shown
// in a bubbletea view instead of plain output.
type progressMode string

const (
	progressAuto progressMode = "auto"
	progressOn   progressMode = "on"
	progressOff  progressMode = "off"
)

func readProgressMode(value string) (progressMode, error) {
	switch m := progressMode(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return progressAuto, nil
	case progressAuto, progressOn, progressOff:
		return m, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// showProgress decides for a run over units files. In auto mode a single
// unit finishes too fast for a progress view, and one is only drawn on a
// terminal.
func (m progressMode) showProgress(units int, tty bool) bool {
	switch m {
	case progressOn:
		return units > 0
	case progressOff:
		return false
	}
	return tty && units > 1
}

func stdoutIsTerminal() bool { return isTerminal(os.Stdout) }
