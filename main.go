package main

import "github.com/agentic-research/impactree/cmd"

func main() {
	cmd.Execute()
}
