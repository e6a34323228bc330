package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nplace/tracker/internal/collector"
)

var rankCmd = &cobra.Command{
	Use:   "rank <keyword> <place-url-or-id>",
	Short: "Look up a store's live rank for a keyword without persisting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		keyword := args[0]

		placeID := collector.ExtractPlaceID(args[1])
		if placeID == "" {
			return eris.Errorf("invalid place reference: %s", args[1])
		}

		e, err := initEnv(ctx, "collect")
		if err != nil {
			return err
		}
		defer e.Close()

		entry := e.Collector.FindRank(ctx, keyword, placeID)
		if entry == nil {
			fmt.Printf("%q: place %s not found in results\n", keyword, placeID)
			return nil
		}

		fmt.Printf("%q: rank %d of %d\n", keyword, entry.Position, entry.Total)
		if entry.VisitorReviews != nil {
			fmt.Printf("visitor reviews: %d\n", *entry.VisitorReviews)
		}
		if entry.BlogReviews != nil {
			fmt.Printf("blog reviews: %d\n", *entry.BlogReviews)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)
}
