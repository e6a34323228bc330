package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var collectCmd = &cobra.Command{
	Use:   "collect [keyword-id]",
	Short: "Collect rankings now, for one keyword or for all active keywords",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "collect")
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) == 1 {
			snap, err := e.Service.CollectRanking(ctx, args[0])
			if err != nil {
				return err
			}
			if snap.RankPosition != nil {
				fmt.Printf("rank %d of %d\n", *snap.RankPosition, *snap.TotalResults)
			} else {
				fmt.Println("not ranked")
			}
			return nil
		}

		collected, err := e.Service.CollectAll(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("collection finished", zap.Int("collected", collected))
		fmt.Printf("collected %d keyword(s)\n", collected)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}
