// The main package for the cricsync executable.
package main

import "github.com/crickstats/cricsync/cmd"

func main() {
	cmd.Execute()
}
