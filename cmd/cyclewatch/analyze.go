package main

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/cyclewatch/internal/app"
	"github.com/newthinker/cyclewatch/internal/config"
	"github.com/newthinker/cyclewatch/internal/cycle"
	"github.com/newthinker/cyclewatch/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [asset]",
	Short: "Evaluate the cycle indicator for one asset",
	Long: `Fetches the price and volume history of an asset, evaluates the rolling
mean band and prints the resulting report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeCurrency   string
	analyzeFrom       string
	analyzeTo         string
	analyzeWindow     int
	analyzeMultiplier float64
	analyzeHalvings   bool
	analyzePoint      bool
	analyzeAdvise     bool
	analyzeLanguage   string
	analyzePublish    bool
	analyzeJSON       bool
	analyzeTimeout    time.Duration
)

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeCurrency, "currency", "", "quote currency (default from config)")
	f.StringVar(&analyzeFrom, "from", "", "history start (YYYY-MM-DD)")
	f.StringVar(&analyzeTo, "to", "", "evaluation date (YYYY-MM-DD, default today)")
	f.IntVar(&analyzeWindow, "window", 0, "rolling mean window in observations")
	f.Float64Var(&analyzeMultiplier, "multiplier", 0, "band multiplier")
	f.BoolVar(&analyzeHalvings, "halvings", false, "annotate bitcoin halving events")
	f.BoolVar(&analyzePoint, "point", false, "fetch the price and volume at --to instead of using the last observation")
	f.BoolVar(&analyzeAdvise, "advise", false, "ask the configured LLM for strategies")
	f.StringVar(&analyzeLanguage, "language", "", "language of the advice")
	f.BoolVar(&analyzePublish, "publish", false, "save the report to the archive")
	f.BoolVar(&analyzeJSON, "json", false, "print the report as JSON")
	f.DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "overall timeout")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := applyEngineFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	req := cycle.Request{
		Asset:      cfg.Market.Asset,
		Currency:   cfg.Market.Currency,
		FetchPoint: analyzePoint,
	}
	if len(args) == 1 {
		req.Asset = args[0]
	}
	if analyzeCurrency != "" {
		req.Currency = analyzeCurrency
	}
	if req.From, err = parseDate("from", analyzeFrom); err != nil {
		return err
	}
	if req.To, err = parseDate("to", analyzeTo); err != nil {
		return err
	}

	application, err := app.Build(cfg, nil, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	if analyzePublish && application.Store() == nil {
		log.Warn("archive disabled, --publish ignored")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	rep, _, err := application.Analyze(ctx, req, app.AnalyzeOptions{
		Advise:   analyzeAdvise,
		Language: analyzeLanguage,
		Publish:  analyzePublish,
	})
	if err != nil {
		return err
	}
	log.Debug("analysis complete",
		zap.String("asset", rep.Asset),
		zap.String("regime", string(rep.Regime)),
	)

	out := cmd.OutOrStdout()
	if analyzeJSON {
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return report.WriteText(out, rep)
}

// applyEngineFlags copies explicitly set engine flags into cfg and rejects
// non-positive values instead of falling back to the configured ones.
func applyEngineFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("window") {
		cfg.Engine.Window = analyzeWindow
	}
	if flags.Changed("multiplier") {
		cfg.Engine.Multiplier = analyzeMultiplier
	}
	if analyzeHalvings {
		cfg.Engine.Halvings = true
	}

	opts := cycle.Options{
		Window:           cfg.Engine.Window,
		Multiplier:       cfg.Engine.Multiplier,
		VolumeWindowDays: cfg.Engine.VolumeWindowDays,
	}
	return opts.Validate()
}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date (use YYYY-MM-DD): %w", name, err)
	}
	return t, nil
}
