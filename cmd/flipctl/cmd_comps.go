package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

func (c *cli) compsCmd() *cobra.Command {
	var (
		file     string
		query    string
		category string
	)
	cmd := &cobra.Command{
		Use:   "comps",
		Short: "Clean and summarize a file of sold comps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var sold []domain.SoldComp
			if err := c.readInput(file, &sold); err != nil {
				return err
			}
			uc, err := c.decisions()
			if err != nil {
				return err
			}
			result, err := uc.Summarize(cmd.Context(), ports.CompsRequest{
				Query:    query,
				Category: domain.Category(category),
				Manual:   sold,
			})
			if err != nil {
				return fmt.Errorf("summarize comps: %w", err)
			}
			return c.print(result)
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "JSON file of sold comps, - for stdin")
	cmd.Flags().StringVar(&query, "query", "", "Label for the comps set")
	cmd.Flags().StringVar(&category, "category", "", "Item category")
	return cmd
}
