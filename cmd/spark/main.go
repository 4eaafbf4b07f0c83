package main

import (
	"github.com/sparkgen/spark/cli"
)

func main() {
	cli.Execute()
}
