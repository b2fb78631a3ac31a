// Package main provides the curator binary: a curation interface over a
// repository of SSSOM mapping files.
//
// Usage:
//
//	curator init <directory> --purl-base=<uri> --user=<orcid-curie>
//	curator web [--config=<path>] [--target=<curie> ...]
//	curator summary [--config=<path>]
//	curator predict <subjects.tsv> <objects.tsv> [--config=<path>]
//	curator merge <output-directory> [--config=<path>] [--json]
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ontomap/sssom-curator/internal/app"
	"github.com/ontomap/sssom-curator/internal/curation"
	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/export"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/predict"
	"github.com/ontomap/sssom-curator/internal/repository"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "curator",
		Short:         "Curate predicted semantic mappings in SSSOM format",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", repository.DefaultConfigName, "Repository config file or directory")

	cmd.AddCommand(webCmd(&configPath))
	cmd.AddCommand(initCmd())
	cmd.AddCommand(summaryCmd(&configPath))
	cmd.AddCommand(predictCmd(&configPath))
	cmd.AddCommand(mergeCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("curator version %s\n", version)
		},
	})
	return cmd
}

func parseTargets(raw []string) ([]curies.Reference, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	targets := make([]curies.Reference, 0, len(raw))
	for _, curie := range raw {
		target, err := curies.ParseCURIE(curie)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", curie, err)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func webCmd(configPath *string) *cobra.Command {
	var rawTargets []string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the curation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseTargets(rawTargets)
			if err != nil {
				return err
			}
			a, err := app.New(*configPath, targets)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run()
		},
	}
	cmd.Flags().StringArrayVar(&rawTargets, "target", nil, "Restrict curation to mappings touching this CURIE (repeatable)")
	return cmd
}

func initCmd() *cobra.Command {
	var purlBase, user string

	cmd := &cobra.Command{
		Use:   "init <directory>",
		Short: "Create a new curation repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repository.Init(args[0], purlBase, user)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized curation repository in %s\n", args[0])
			for _, path := range repo.Paths() {
				fmt.Printf("  %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&purlBase, "purl-base", "", "Base URI for mapping set identifiers")
	cmd.Flags().StringVar(&user, "user", "", "Curator CURIE, e.g. orcid:0000-0000-0000-0000")
	return cmd
}

func summaryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print a prefix-pair histogram of the remaining predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New("prod")
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, err := repository.Load(*configPath)
			if err != nil {
				return err
			}
			converter, err := repo.Converter()
			if err != nil {
				return err
			}
			controller, err := curation.NewMemoryController(repo, converter, log, nil)
			if err != nil {
				return err
			}

			histogram, err := controller.PrefixHistogram(curation.Query{}.Unbounded())
			if err != nil {
				return err
			}
			pairs := make([]curation.PrefixPair, 0, len(histogram))
			for pair := range histogram {
				pairs = append(pairs, pair)
			}
			sort.Slice(pairs, func(i, j int) bool {
				if histogram[pairs[i]] != histogram[pairs[j]] {
					return histogram[pairs[i]] > histogram[pairs[j]]
				}
				if pairs[i].Subject != pairs[j].Subject {
					return pairs[i].Subject < pairs[j].Subject
				}
				return pairs[i].Object < pairs[j].Object
			})

			total := 0
			for _, pair := range pairs {
				fmt.Printf("%s\t%s\t%d\n", pair.Subject, pair.Object, histogram[pair])
				total += histogram[pair]
			}
			fmt.Printf("total\t\t%d\n", total)
			return nil
		},
	}
}

func predictCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <subjects.tsv> <objects.tsv>",
		Short: "Append lexical exact-match predictions to the predictions file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New("prod")
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, err := repository.Load(*configPath)
			if err != nil {
				return err
			}
			subjects, err := predict.ReadTerms(args[0])
			if err != nil {
				return err
			}
			objects, err := predict.ReadTerms(args[1])
			if err != nil {
				return err
			}
			known, err := predict.KnownPairs(repo)
			if err != nil {
				return err
			}

			matcher := predict.NewLexicalMatcher(log)
			predictions, err := matcher.Predict(context.Background(), subjects, objects, known)
			if err != nil {
				return err
			}
			if len(predictions) == 0 {
				fmt.Println("No new predictions")
				return nil
			}
			converter, err := repo.Converter()
			if err != nil {
				return err
			}
			if err := sssom.Append(predictions, repo.PredictionsPath, converter); err != nil {
				return err
			}
			fmt.Printf("Appended %d predictions to %s\n", len(predictions), repo.PredictionsPath)
			return nil
		},
	}
}

func mergeCmd(configPath *string) *cobra.Command {
	var withJSON bool

	cmd := &cobra.Command{
		Use:   "merge <output-directory>",
		Short: "Pool curated and predicted mappings into distribution artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New("prod")
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, err := repository.Load(*configPath)
			if err != nil {
				return err
			}
			result, err := export.Merge(log, repo, args[0], export.Options{JSON: withJSON})
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d mappings to %s\n", result.Mappings, result.TSVPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withJSON, "json", false, "Also write a JSON artifact (requires purl_base)")
	return cmd
}
