package main

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/logger"
)

type options struct {
	configPath string
	indexDir   string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "searchctl",
		Short:         "Operate a tag-weighted inverted index.",
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `searchctl builds an on-disk inverted index from a corpus of JSON
documents, re-runs the shard merge, and answers ranked queries and single
term lookups against the merged index.

  searchctl build --corpus ./DEV
  searchctl query "machine learning"
  searchctl lookup learn --field h1`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if opts.configPath != "" {
				loaded, err := config.Load(opts.configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if opts.indexDir != "" {
				cfg.Indexer.IndexDir = opts.indexDir
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&opts.indexDir, "index-dir", "", "index directory (overrides indexer.indexDir)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newBuildCmd(opts),
		newMergeCmd(opts),
		newQueryCmd(opts),
		newLookupCmd(opts),
	)
	return root
}
