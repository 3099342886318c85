package main

import "github.com/lualive/livepatch/cmd"

func main() {
	cmd.Execute()
}
