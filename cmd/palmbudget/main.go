package main

import (
	"palmbudget/internal/cli"
)

func main() {
	cli.Execute()
}
