package main

import (
	"os"

	"github.com/wcpos/siteconnect/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
