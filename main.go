package main

import "github.com/kamal-hamza/tagbox/cmd"

func main() {
	cmd.Execute()
}
