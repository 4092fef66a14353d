package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
)

func newBuildCmd(opts *options) *cobra.Command {
	var (
		corpus    string
		flushMode string
		flushDocs int
		flushSize int64
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the index from a corpus directory.",
		Long: `Build wipes the index directory's shard trees, ingests every JSON
document under the corpus directory, spills partial indexes at the flush
threshold and merges every shard. The manifest is written only when all
shards merge cleanly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.Indexer
			if corpus != "" {
				cfg.CorpusDir = corpus
			}
			if flushMode != "" {
				cfg.FlushMode = config.FlushMode(flushMode)
			}
			if flushDocs > 0 {
				cfg.FlushDocuments = flushDocs
			}
			if flushSize > 0 {
				cfg.FlushBytes = flushSize
			}
			opts.cfg.Indexer = cfg
			if err := opts.cfg.Validate(); err != nil {
				return err
			}

			src, err := source.OpenCorpus(cfg.CorpusDir)
			if err != nil {
				return err
			}
			engine, err := indexer.NewEngine(cfg, tokenizer.New(nil), nil)
			if err != nil {
				return err
			}
			report, err := engine.Build(cmd.Context(), src)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "documents:  %d\n", report.Documents)
			fmt.Fprintf(out, "duplicates: %d\n", report.Duplicates)
			fmt.Fprintf(out, "flushes:    %d\n", report.Flushes)
			fmt.Fprintf(out, "shards:     %d\n", report.Manifest.ShardsMerged)
			fmt.Fprintf(out, "elapsed:    %s\n", report.Elapsed)
			return nil
		},
	}
	cmd.Flags().StringVar(&corpus, "corpus", "", "corpus directory (overrides indexer.corpusDir)")
	cmd.Flags().StringVar(&flushMode, "flush-mode", "", "documents or bytes")
	cmd.Flags().IntVar(&flushDocs, "flush-documents", 0, "documents per partial flush")
	cmd.Flags().Int64Var(&flushSize, "flush-bytes", 0, "estimated bytes per partial flush")
	return cmd
}

func newMergeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge any unmerged shards of an existing index.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := indexer.NewEngine(opts.cfg.Indexer, tokenizer.New(nil), nil)
			if err != nil {
				return err
			}
			manifest, err := engine.Merge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d shards over %d documents\n", manifest.ShardsMerged, manifest.TotalDocs)
			return nil
		},
	}
}
