package main

import "copilot/cmd"

func main() {
	cmd.Execute()
}
