// The main package for the chansearch executable.
package main

import (
	"github.com/JakeFAU/chansearch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
