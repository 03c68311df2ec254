package main

import (
	"github.com/dyike/BriefCast/internal/cli"
)

func main() {
	cli.Run()
}
