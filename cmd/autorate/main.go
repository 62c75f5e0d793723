// Command autorate scores every generated script with every configured auto-rater.
package main

import (
	"os"

	"github.com/ahrav/go-scriptbench/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewAutorateCommand()))
}
