package main

import "github.com/camposer/agentrelay/cmd"

func main() {
	cmd.Execute()
}
