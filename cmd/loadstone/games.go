package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loadstone-dev/loadstone/app/core/games"
)

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List the supported games and their plugin limits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tGAME VERSION\tPLUGIN SOFT/HARD\tLIGHT SOFT/HARD")
		for _, game := range games.All() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d/%d\n",
				game.ID, game.Name, game.GameVersion,
				game.PluginSoft, game.PluginHard, game.LightSoft, game.LightHard)
		}
		return tw.Flush()
	},
}
