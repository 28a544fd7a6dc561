// Recipebox is the command-line interface to the recipe database.
package main

import (
	"os"

	"github.com/mesh-intelligence/recipebox/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
