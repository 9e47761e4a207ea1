package main

import (
	"github.com/icalgate/icalgate/pkg/cmd"
)

func main() {
	cmd.Execute()
}
