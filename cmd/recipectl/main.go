package main

import "github.com/raaihank/recipe-ai/internal/cli"

func main() {
	cli.Execute()
}
