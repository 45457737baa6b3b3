package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

func (c *cli) decideCmd() *cobra.Command {
	var (
		price       float64
		inbound     float64
		outbound    float64
		marketValue float64
		feeRate     float64
		dataSource  string
		compsFile   string
		query       string
	)
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide flip or skip for one purchase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := ports.DecideRequest{Input: domain.DecisionInput{
				PurchasePrice:    price,
				InboundShipping:  inbound,
				OutboundShipping: outbound,
				DataSource:       domain.DataSourceConfidence(dataSource),
			}}
			if cmd.Flags().Changed("market-value") {
				req.Input.MarketValue = &marketValue
			}
			if cmd.Flags().Changed("fee-rate") {
				req.Input.FeeRate = &feeRate
			}
			if compsFile != "" {
				var sold []domain.SoldComp
				if err := c.readInput(compsFile, &sold); err != nil {
					return err
				}
				req.Comps = &ports.CompsRequest{Query: query, Manual: sold}
			}

			uc, err := c.decisions()
			if err != nil {
				return err
			}
			report, err := uc.Decide(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("decide: %w", err)
			}
			return c.print(report)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&price, "price", 0, "Purchase price")
	flags.Float64Var(&inbound, "inbound-shipping", 0, "Shipping paid to receive the item")
	flags.Float64Var(&outbound, "outbound-shipping", 0, "Shipping paid to send the item to the buyer")
	flags.Float64Var(&marketValue, "market-value", 0, "Known market value; omit to derive it from --comps")
	flags.Float64Var(&feeRate, "fee-rate", 0, "Platform fee rate, e.g. 0.13")
	flags.StringVar(&dataSource, "data-source", "", "Market value reliability (high|medium|low|none)")
	flags.StringVar(&compsFile, "comps", "", "JSON file of sold comps, - for stdin")
	flags.StringVar(&query, "query", "", "Label for the comps set")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}
