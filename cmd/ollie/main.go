// Command ollie is the CLI entrypoint.
package main

import "github.com/ollielabs/ollie/cmd"

func main() {
	cmd.Execute()
}
