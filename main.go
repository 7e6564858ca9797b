package main

import (
	"log"

	"github.com/ChangeCaps/musix/cmd"
	"github.com/ChangeCaps/musix/internal/conf"
)

func main() {
	settings := conf.Default()
	if err := cmd.RootCommand(settings).Execute(); err != nil {
		log.Fatal(err)
	}
}
