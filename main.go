package main

import (
	cmd "github.com/getzep/entitylink/cmd/entitylink"
	"github.com/getzep/entitylink/internal"
)

var log = internal.GetLogger()

func main() {
	log.Debug("Starting entitylink")
	cmd.Execute()
}
