// The main package for the rentpulse executable.
package main

import (
	"github.com/rentpulse/rentpulse/cmd"
)

func main() {
	cmd.Execute()
}
