// Command leaderboard aggregates persisted ratings into docs/leaderboard.json.
package main

import (
	"os"

	"github.com/ahrav/go-scriptbench/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewLeaderboardCommand()))
}
