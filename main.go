package main

import "github.com/agentic-research/remolder/cmd"

func main() {
	cmd.Execute()
}
