package rootfs

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptPassword reads the root password for the new image from the
// terminal, twice, without echo. It fails when stdin is not a terminal so
// unattended runs must provide the password through configuration instead
// of hanging on a hidden prompt.
func PromptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set rootfs.root_password in the config for unattended runs")
	}

	fmt.Fprint(os.Stderr, "Root password for the new system: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Retype root password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("empty password not allowed")
	}
	return string(first), nil
}
