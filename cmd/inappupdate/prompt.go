package main

import (
	"inappupdate/internal/appupdate"

	"github.com/charmbracelet/huh"
)

// chooseMode asks which update mode to run with. The current mode is kept
// if the prompt is interrupted.
func chooseMode(current appupdate.UpdateMode) appupdate.UpdateMode {
	choice := current
	form := huh.NewSelect[appupdate.UpdateMode]().
		Title("Which update mode should the app use?").
		Options(
			huh.NewOption("flexible (download in background)", appupdate.ModeFlexible),
			huh.NewOption("immediate (block until installed)", appupdate.ModeImmediate),
		).
		Value(&choice)

	if err := form.Run(); err != nil {
		return current
	}
	return choice
}
