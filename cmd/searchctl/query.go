package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/executor"
)

func newQueryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "query [text...]",
		Aliases: []string{"q"},
		Short:   "Run a ranked query and print the matching urls.",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := executor.Open(opts.cfg.Indexer.IndexDir, opts.cfg.Search, tokenizer.New(nil))
			if err != nil {
				return err
			}
			defer engine.Close()

			result, err := engine.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d hits for %v\n", result.TotalHits, result.Terms)
			for i, doc := range result.Results {
				if limit > 0 && i >= limit {
					break
				}
				fmt.Fprintf(out, "%3d  %10.4f  %s\n", i+1, doc.Score, doc.URL)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "results to print (0 prints all)")
	return cmd
}

func newLookupCmd(opts *options) *cobra.Command {
	var (
		fieldName string
		raw       bool
	)
	cmd := &cobra.Command{
		Use:   "lookup <term>",
		Short: "Print one term's merged block from a field.",
		Long: `Lookup stems the given word (unless --raw) and prints its block as it
appears in the shard file: the term line, the idf line and one (doc,weight)
line per posting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := field.ParseKind(fieldName)
			if err != nil {
				return err
			}
			tok := tokenizer.New(nil)
			term := strings.ToLower(args[0])
			if !raw {
				term = tok.Stem(term)
			}
			engine, err := executor.Open(opts.cfg.Indexer.IndexDir, opts.cfg.Search, tok)
			if err != nil {
				return err
			}
			defer engine.Close()

			block, err := engine.LookupTerm(cmd.Context(), term, kind)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(block.Entries) == 0 {
				fmt.Fprintf(out, "%q not found in %s\n", term, kind)
				return nil
			}
			fmt.Fprintf(out, "term = %s\nidf = %s\n", block.Term, segment.FormatFloat(block.IDF))
			for _, e := range block.Entries {
				fmt.Fprintf(out, "(%d,%s)\n", e.DocID, segment.FormatFloat(e.Weight))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&fieldName, "field", "f", "frequency", "frequency or an importance tag (title, h1, h2, h3, b, i, strong, em)")
	cmd.Flags().BoolVar(&raw, "raw", false, "look up the word without stemming")
	return cmd
}
