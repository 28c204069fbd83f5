package main

import "github.com/mvp-joe/storyindex/internal/cli"

func main() {
	cli.Execute()
}
