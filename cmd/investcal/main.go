package main

import (
	"invest-calendar/internal/cli"
)

func main() {
	cli.Execute()
}
