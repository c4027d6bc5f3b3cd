package main

import "github.com/felo/cargo-eml-prompts/cmd"

func main() {
	cmd.Execute()
}
