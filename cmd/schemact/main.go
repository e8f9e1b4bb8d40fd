// Command schemact compiles .sigl schema files into SQL and applies them
// against a live database.
package main

import "github.com/schemact/schemact/internal/cli"

func main() {
	cli.Execute()
}
