// Command aragora is the CLI entrypoint wiring cmd.Execute's subcommands
// (serve, migrate, init) to a single binary.
package main

import "github.com/aragora-project/aragora-go/cmd"

func main() {
	cmd.Execute()
}
