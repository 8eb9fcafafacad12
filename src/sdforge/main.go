// sdforge prepares a bootable micro-SD card for a single-board computer,
// from source checkout to a populated root filesystem.
package main

import (
	"github.com/sdforge/sdforge/src/sdforge/internal/cmd"
)

func main() {
	cmd.Execute()
}
