package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ErrAmbiguousChoice is returned when a required selection has several
// candidates and no interactive source is available.
var ErrAmbiguousChoice = errors.New("ambiguous choice")

// ValueSource supplies a selection when a required choice (collection file,
// auth profile) is ambiguous. The core calls it only on ambiguity.
type ValueSource interface {
	Select(prompt string, options []string) (string, error)
}

// InteractiveSource prompts the user with a terminal select menu.
type InteractiveSource struct{}

func (InteractiveSource) Select(prompt string, options []string) (string, error) {
	choices := make([]huh.Option[string], len(options))
	for i, opt := range options {
		choices[i] = huh.NewOption(opt, opt)
	}

	var selected string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(prompt).
			Options(choices...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

// NonInteractiveSource refuses every ambiguous choice so scripted runs fail
// fast instead of hanging on a prompt.
type NonInteractiveSource struct{}

func (NonInteractiveSource) Select(prompt string, options []string) (string, error) {
	return "", fmt.Errorf("%w: %s (candidates: %d); re-run interactively or pass the value explicitly",
		ErrAmbiguousChoice, prompt, len(options))
}
