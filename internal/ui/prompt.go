package ui

import (
	"github.com/charmbracelet/huh"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// SelectCalendars asks which calendars to mirror, preselecting the current
// selection. It returns the chosen ids in list order.
func SelectCalendars(cals []*schema.Calendar) ([]string, error) {
	options := make([]huh.Option[string], 0, len(cals))
	for _, c := range cals {
		label := c.Summary
		if c.Primary {
			label += " (primary)"
		}
		if c.Holiday {
			label += " (holidays)"
		}
		options = append(options, huh.NewOption(label, c.ID).Selected(c.Selected))
	}

	var ids []string
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Calendars to mirror").
			Options(options...).
			Value(&ids),
	))
	if err := form.Run(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().Title(title).Value(&ok).Run()
	return ok, err
}
