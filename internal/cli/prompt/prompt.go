// Package prompt provides the interactive terminal prompts sane-netctl uses
// when a password isn't supplied on the command line, and for yes/no
// confirmation before destructive operations.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user presses Ctrl+C mid-prompt.
var ErrAborted = errors.New("prompt: aborted")

// ErrPasswordMismatch indicates the password and its confirmation differ.
var ErrPasswordMismatch = errors.New("prompt: passwords do not match")

func wrapError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		return ErrAborted
	}
	return err
}

// IsAborted reports whether err came from a Ctrl+C interrupt.
func IsAborted(err error) bool { return errors.Is(err, ErrAborted) }

// Input prompts for a single line of text.
func Input(label string) (string, error) {
	p := promptui.Prompt{Label: label}
	result, err := p.Run()
	return result, wrapError(err)
}

// Password prompts for a password with masked input and a minimum length.
func Password(label string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapError(err)
}

// PasswordWithConfirmation prompts twice and requires the two entries match.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	password, err := Password(label, minLength)
	if err != nil {
		return "", err
	}
	confirm, err := Password(confirmLabel, 0)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// ConfirmWithForce returns true immediately when force is set, otherwise
// prompts for yes/no confirmation.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [y/N]", label),
		IsConfirm: true,
	}
	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(result, "y") || strings.EqualFold(result, "yes"), nil
}
