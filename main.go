package main

import "github.com/agentic-research/formdex/cmd"

func main() {
	cmd.Execute()
}
