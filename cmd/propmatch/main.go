package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/EmPi44/csv-matching/internal/config"
	"github.com/EmPi44/csv-matching/internal/normalize"
	"github.com/EmPi44/csv-matching/internal/pipeline"
	"github.com/EmPi44/csv-matching/internal/report"
	"github.com/EmPi44/csv-matching/internal/review"
	"github.com/EmPi44/csv-matching/internal/store"
	"github.com/EmPi44/csv-matching/internal/tabular"
)

const version = "1.2.0"

// Exit codes: 0 success, 1 runtime failure, 2 input schema failure.
const (
	exitOK     = 0
	exitError  = 1
	exitSchema = 2
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "propmatch",
		Short: "Property ownership to transaction matching pipeline",
		Long:  `Matches property ownership records against sale transactions using deterministic and fuzzy tiers, with a human review loop for borderline pairs`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createReconcileCmd())
	rootCmd.AddCommand(createExportReviewCmd())
	rootCmd.AddCommand(createStatsCmd())
	rootCmd.AddCommand(createInitConfigCmd())
	rootCmd.AddCommand(createVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}

// fail prints the error and exits with the code its class demands.
func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	var schemaErr *tabular.SchemaError
	if errors.As(err, &schemaErr) {
		os.Exit(exitSchema)
	}
	os.Exit(exitError)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore connects to Postgres when a DSN is configured. With no DSN
// the pipeline runs file-only.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.DSN == "" {
		return nil, nil
	}
	st, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// createRunCmd creates the full-pipeline subcommand.
func createRunCmd() *cobra.Command {
	var ownersPath, txnsPath, outputDir, reviewDir, decisionsPath string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full matching pipeline",
		Long:  `Normalizes both sources, runs deterministic then fuzzy matching, applies any pending review decisions and writes the match and QA artifacts`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fail(err)
			}
			st, err := openStore(cfg)
			if err != nil {
				fail(err)
			}
			if st != nil {
				defer st.Close()
			}

			res, err := pipeline.Run(pipeline.Options{
				OwnersPath:       ownersPath,
				TransactionsPath: txnsPath,
				Config:           cfg,
				OutputDir:        outputDir,
				ReviewDir:        reviewDir,
				DecisionsPath:    decisionsPath,
				Store:            st,
			})
			if err != nil {
				fail(err)
			}

			report.RenderTable(os.Stdout, res.Summary)
			fmt.Printf("\nMatches written to %s\n", res.MatchesPath)
			fmt.Printf("QA report written to %s\n", res.ReportPath)
		},
	}

	runCmd.Flags().StringVar(&ownersPath, "owners", "", "path to owners source file (csv or xlsx)")
	runCmd.Flags().StringVar(&txnsPath, "transactions", "", "path to transactions source file (csv or xlsx)")
	runCmd.Flags().StringVar(&outputDir, "output", "", "output directory (overrides config)")
	runCmd.Flags().StringVar(&reviewDir, "review-dir", "", "review directory (overrides config)")
	runCmd.Flags().StringVar(&decisionsPath, "decisions", "", "explicit review decisions file")
	runCmd.MarkFlagRequired("owners")
	runCmd.MarkFlagRequired("transactions")
	return runCmd
}

// createReconcileCmd re-applies review decisions to an existing match run
// without re-running the matchers.
func createReconcileCmd() *cobra.Command {
	var ownersPath, txnsPath, decisionsPath, outputDir, reviewDir string

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-run the pipeline applying completed review decisions",
		Long:  `Runs the pipeline again over the same sources with a completed decisions file, promoting approved pairs and removing rejected ones. Applying the same decisions twice yields the same match set`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fail(err)
			}
			st, err := openStore(cfg)
			if err != nil {
				fail(err)
			}
			if st != nil {
				defer st.Close()
			}

			res, err := pipeline.Run(pipeline.Options{
				OwnersPath:       ownersPath,
				TransactionsPath: txnsPath,
				Config:           cfg,
				OutputDir:        outputDir,
				ReviewDir:        reviewDir,
				DecisionsPath:    decisionsPath,
				Store:            st,
			})
			if err != nil {
				fail(err)
			}

			fmt.Printf("Reconciled %d matches (approved %d, rejected %d, unknown %d)\n",
				res.Summary.TotalMatches,
				res.Summary.ReviewApproved,
				res.Summary.ReviewRejected,
				res.Summary.ReviewUnknown)
			fmt.Printf("Matches written to %s\n", res.MatchesPath)
		},
	}

	reconcileCmd.Flags().StringVar(&ownersPath, "owners", "", "path to owners source file")
	reconcileCmd.Flags().StringVar(&txnsPath, "transactions", "", "path to transactions source file")
	reconcileCmd.Flags().StringVar(&decisionsPath, "decisions", "", "completed review decisions file")
	reconcileCmd.Flags().StringVar(&outputDir, "output", "", "output directory (overrides config)")
	reconcileCmd.Flags().StringVar(&reviewDir, "review-dir", "", "review directory (overrides config)")
	reconcileCmd.MarkFlagRequired("owners")
	reconcileCmd.MarkFlagRequired("transactions")
	reconcileCmd.MarkFlagRequired("decisions")
	return reconcileCmd
}

// createExportReviewCmd turns an existing pairs export into a decision
// template reviewers fill in.
func createExportReviewCmd() *cobra.Command {
	var pairsPath, outPath string

	exportCmd := &cobra.Command{
		Use:   "export-review",
		Short: "Create a decisions template from exported review pairs",
		Run: func(cmd *cobra.Command, args []string) {
			n, written, err := review.WriteDecisionTemplate(pairsPath, outPath)
			if err != nil {
				fail(err)
			}
			fmt.Printf("Wrote decision template with %d pairs to %s\n", n, written)
		},
	}

	exportCmd.Flags().StringVar(&pairsPath, "pairs", "review/pairs.csv", "exported review pairs file")
	exportCmd.Flags().StringVar(&outPath, "out", "", "decisions template path (default alongside pairs)")
	return exportCmd
}

// createStatsCmd summarises a source file without matching anything.
func createStatsCmd() *cobra.Command {
	var ownersPath, txnsPath string

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show normalization statistics for the source files",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fail(err)
			}
			norm := normalize.New(nil)
			norm.SqftThreshold = cfg.Matching.SqftThreshold

			if ownersPath != "" {
				rows, err := tabular.ReadSource(ownersPath, cfg.OwnerColumns(), config.RequiredOwnerFields)
				if err != nil {
					fail(err)
				}
				raws := make([]normalize.RawOwner, 0, len(rows))
				for _, r := range rows {
					raws = append(raws, normalize.RawOwner{
						OwnerID:   r["owner_id"],
						Project:   r["project"],
						Building:  r["building"],
						Unit:      r["unit"],
						Plot:      r["plot"],
						Area:      r["area"],
						OwnerName: r["owner_name"],
						PartyType: r["party_type"],
					})
				}
				res := norm.Owners(raws, cfg.Matching.PropertyType)
				printSourceStats("Owners", len(rows), len(res.Records), res.Dropped, res.ValueWarnings)
			}
			if txnsPath != "" {
				rows, err := tabular.ReadSource(txnsPath, cfg.TransactionColumns(), config.RequiredTransactionFields)
				if err != nil {
					fail(err)
				}
				raws := make([]normalize.RawTransaction, 0, len(rows))
				for _, r := range rows {
					raws = append(raws, normalize.RawTransaction{
						TxnID:    r["txn_id"],
						Project:  r["project"],
						Building: r["building"],
						Unit:     r["unit"],
						Plot:     r["plot"],
						Area:     r["area"],
					})
				}
				res := norm.Transactions(raws, cfg.Matching.PropertyType)
				printSourceStats("Transactions", len(rows), len(res.Records), res.Dropped, res.ValueWarnings)
			}
			if ownersPath == "" && txnsPath == "" {
				fail(errors.New("provide --owners and/or --transactions"))
			}
		},
	}

	statsCmd.Flags().StringVar(&ownersPath, "owners", "", "path to owners source file")
	statsCmd.Flags().StringVar(&txnsPath, "transactions", "", "path to transactions source file")
	return statsCmd
}

func printSourceStats(name string, raw, kept int, dropped, warnings map[string]int) {
	fmt.Printf("%s: %d rows, %d normalized\n", name, raw, kept)
	for reason, n := range dropped {
		fmt.Printf("  dropped %s: %d\n", reason, n)
	}
	for field, n := range warnings {
		fmt.Printf("  value warnings %s: %d\n", field, n)
	}
}

// createInitConfigCmd writes the annotated sample configuration.
func createInitConfigCmd() *cobra.Command {
	var outPath string

	initCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a sample configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := os.Stat(outPath); err == nil {
				fail(fmt.Errorf("refusing to overwrite existing %s", outPath))
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					fail(err)
				}
			}
			if err := os.WriteFile(outPath, []byte(config.SampleConfig()), 0o644); err != nil {
				fail(err)
			}
			fmt.Printf("Wrote sample config to %s\n", outPath)
		},
	}

	initCmd.Flags().StringVar(&outPath, "out", "propmatch.toml", "where to write the sample config")
	return initCmd
}

func createVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("propmatch", version)
		},
	}
}
