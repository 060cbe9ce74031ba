// The main package for the depthcrawl executable.
package main

import (
	"github.com/JakeFAU/depth-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
