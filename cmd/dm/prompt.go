package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"golang.org/x/term"
)

// interactive reports whether questions can be asked on this terminal.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// confirm asks a yes/no question. With --yes it answers yes without asking.
// asked is false when no answer could be obtained.
func confirm(title string) (ok, asked bool) {
	if yesFlag {
		return true, true
	}
	if !interactive() {
		return false, false
	}
	if err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run(); err != nil {
		return false, false
	}
	return ok, true
}

// promptName asks for a name when none was given on the command line.
func promptName() (string, error) {
	if !interactive() {
		return "", fmt.Errorf("name is required")
	}
	var name string
	err := huh.NewInput().
		Title("Name").
		Value(&name).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("name is required")
			}
			return nil
		}).
		Run()
	return name, err
}

// promptStatus offers the relationship statuses.
func promptStatus(options []huh.Option[string], current string) (string, error) {
	value := current
	err := huh.NewSelect[string]().
		Title("Relationship status").
		Options(options...).
		Value(&value).
		Run()
	return value, err
}

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate accepts RFC3339, YYYY-MM-DD or natural language ("last friday").
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return r.Time, nil
}
