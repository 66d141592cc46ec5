// The main package for the gpwatch executable.
package main

import (
	"github.com/JakeFAU/gp-agenda-watcher/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
