package main

import (
	"os"

	"github.com/jandubois/healthmon/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
