package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/flipscout/internal/bootstrap"
	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/usecase"
	"github.com/kirillkom/flipscout/internal/observability/logging"
)

type cli struct {
	in     io.Reader
	out    io.Writer
	format string
	level  string
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}
	root := &cobra.Command{
		Use:   "flipctl",
		Short: "Offline flip decisions, comps summaries and opportunity ranking",
		Long: `flipctl runs the decision engine, comps aggregation and flip-score ranking
locally. Sold comps are read from files; nothing is fetched from a marketplace.

Examples:
  flipctl decide --price 8 --market-value 35
  flipctl decide --price 40 --comps sold.json --query "seiko skx007"
  flipctl comps --file sold.json --format yaml
  flipctl rank --file opportunities.json`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.format, "format", "json", "Output format (json|yaml)")
	root.PersistentFlags().StringVar(&c.level, "log-level", "warn", "Log level")

	root.AddCommand(c.decideCmd(), c.compsCmd(), c.rankCmd())
	return root
}

func (c *cli) decisions() (*usecase.DecisionUseCase, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New("flipctl", c.level, "console")
	if err != nil {
		logger = zap.NewNop()
	}
	return bootstrap.NewOfflineDecisions(cfg, logger)
}

// readInput reads a JSON file, or stdin when path is "-".
func (c *cli) readInput(path string, dst any) error {
	var r io.Reader
	if path == "-" {
		r = c.in
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *cli) print(v any) error {
	switch c.format {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so yaml keys follow the json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(c.out)
		defer enc.Close()
		return enc.Encode(generic)
	}
	return fmt.Errorf("unknown output format %q", c.format)
}
