package main

import (
	"github.com/sw33tLie/lifescore/cmd"
)

func main() {
	cmd.Execute()
}
