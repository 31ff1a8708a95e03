package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/newthinker/cyclewatch/internal/app"
	"github.com/newthinker/cyclewatch/internal/collector"
	"github.com/newthinker/cyclewatch/internal/sentiment/feargreed"
	"github.com/spf13/cobra"
)

var coinsCmd = &cobra.Command{
	Use:   "coins [filter]",
	Short: "List coins known to the market provider",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCoins,
}

var marketsCmd = &cobra.Command{
	Use:   "markets <asset>...",
	Short: "Show the current price and 24h volume of assets",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMarkets,
}

var fearGreedCmd = &cobra.Command{
	Use:   "feargreed",
	Short: "Show recent Fear and Greed Index values",
	RunE:  runFearGreed,
}

var (
	fearGreedDays int
	coinsLimit    int
)

func init() {
	coinsCmd.Flags().IntVar(&coinsLimit, "limit", 50, "maximum number of coins to print (0 for all)")
	fearGreedCmd.Flags().IntVar(&fearGreedDays, "days", 7, "number of days to show")

	rootCmd.AddCommand(coinsCmd)
	rootCmd.AddCommand(marketsCmd)
	rootCmd.AddCommand(fearGreedCmd)
}

func lister() (collector.Lister, string, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, "", err
	}
	defer log.Sync()

	market, err := app.NewMarket(cfg.Market, nil)
	if err != nil {
		return nil, "", err
	}
	l, ok := market.(collector.Lister)
	if !ok {
		return nil, "", fmt.Errorf("market provider %s cannot list coins", market.Name())
	}
	return l, cfg.Market.Currency, nil
}

func runCoins(cmd *cobra.Command, args []string) error {
	l, _, err := lister()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	coins, err := l.Coins(ctx)
	if err != nil {
		return err
	}

	filter := ""
	if len(args) == 1 {
		filter = strings.ToLower(args[0])
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tNAME")
	printed := 0
	for _, c := range coins {
		if filter != "" && !strings.Contains(strings.ToLower(c.ID+" "+c.Symbol+" "+c.Name), filter) {
			continue
		}
		if coinsLimit > 0 && printed >= coinsLimit {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, strings.ToUpper(c.Symbol), c.Name)
		printed++
	}
	return w.Flush()
}

func runMarkets(cmd *cobra.Command, args []string) error {
	l, currency, err := lister()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	ids := make([]string, len(args))
	for i, a := range args {
		ids[i] = collector.CoinID(a)
	}

	tickers, err := l.Markets(ctx, ids, currency)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ASSET\tPRICE (%s)\tVOLUME 24H\tCHANGE 24H\n", strings.ToUpper(currency))
	for _, t := range tickers {
		fmt.Fprintf(w, "%s\t%.2f\t%.0f\t%+.2f%%\n", t.Name, t.Price, t.Volume24h, t.ChangePercent)
	}
	return w.Flush()
}

func runFearGreed(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	client := feargreed.New(feargreed.Config{
		Endpoint: cfg.Sentiment.Endpoint,
		Timeout:  cfg.Sentiment.Timeout,
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	entries, err := client.Entries(ctx, fearGreedDays)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tVALUE\tCLASSIFICATION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%.0f\t%s\n", e.Time.Format(time.DateOnly), e.Value, e.Classification)
	}
	return w.Flush()
}
