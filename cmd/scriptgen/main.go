// Command scriptgen generates one script per configured model and prompt.
package main

import (
	"os"

	"github.com/ahrav/go-scriptbench/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewScriptGenCommand()))
}
