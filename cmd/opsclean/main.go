package main

import "github.com/Hara602/opsclean/internal/cli"

func main() {
	cli.Execute()
}
