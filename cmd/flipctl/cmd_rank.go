package main

import (
	"github.com/spf13/cobra"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

func (c *cli) rankCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank evaluated opportunities by flip score",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ops []domain.Opportunity
			if err := c.readInput(file, &ops); err != nil {
				return err
			}
			uc, err := c.decisions()
			if err != nil {
				return err
			}
			return c.print(uc.Rank(cmd.Context(), ops))
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "JSON file of opportunities, - for stdin")
	return cmd
}
