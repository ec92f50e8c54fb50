package main

import (
	"fmt"
	"io"
	"sync"

	"profiler-service/internal/events"
	"profiler-service/internal/fetcher"

	"github.com/spf13/cobra"
)

type collectOptions struct {
	docs       []string
	urls       []string
	social     bool
	query      string
	synthesize bool
}

func newCollectCmd(c *cli) *cobra.Command {
	opts := &collectOptions{}

	cmd := &cobra.Command{
		Use:   "collect [subject]",
		Short: "Scan a subject and collect evidence",
		Long: `Starts a scan for the subject, collects the given documents, web pages
and social platform searches, optionally asks the model for a profile, and
saves the record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, c, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.docs, "doc", "d", nil, "Document to extract (.txt, .pdf, .docx), repeatable")
	cmd.Flags().StringSliceVarP(&opts.urls, "url", "u", nil, "Web page to scrape, repeatable")
	cmd.Flags().BoolVarP(&opts.social, "social", "s", false, "Search the social platforms")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Social search query (default: subject name)")
	cmd.Flags().BoolVar(&opts.synthesize, "synthesize", false, "Request an AI profile after collecting")
	return cmd
}

func runCollect(cmd *cobra.Command, c *cli, subject string, opts *collectOptions) error {
	a, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	done := printEvents(out, a.Events)
	defer done()

	p := a.Profiler
	if _, err := p.Scan(ctx, subject); err != nil {
		return err
	}

	var summaries []string
	if len(opts.docs) > 0 {
		s, err := p.CollectDocuments(ctx, opts.docs)
		if err != nil {
			return err
		}
		summaries = append(summaries, summaryLine("Documents", s))
	}
	if len(opts.urls) > 0 {
		s, err := p.CollectWeb(ctx, opts.urls)
		if err != nil {
			return err
		}
		summaries = append(summaries, summaryLine("Web pages", s))
	}
	if opts.social {
		s, err := p.CollectSocial(ctx, opts.query)
		if err != nil {
			return err
		}
		summaries = append(summaries, summaryLine("Social", s))
	}

	if opts.synthesize {
		if _, err := p.Synthesize(ctx); err != nil {
			return err
		}
	}

	if _, err := p.SaveRecord(ctx); err != nil {
		return err
	}
	done()

	for _, line := range summaries {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, p.Board())
	return nil
}

func summaryLine(kind string, s fetcher.Summary) string {
	return fmt.Sprintf("%s: %d attempted, %d collected, %d empty, %d failed",
		kind, s.Attempted, s.Collected, s.Empty, s.Failed)
}

// printEvents writes log entries to out until the returned func is called.
// Entries already emitted before the call are printed too.
func printEvents(out io.Writer, log *events.Log) func() {
	ch, cancel := log.Subscribe(256)
	backlog := log.Since(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last int64
		for _, e := range backlog {
			fmt.Fprintln(out, formatEntry(e))
			last = e.Seq
		}
		for e := range ch {
			if e.Seq > last {
				fmt.Fprintln(out, formatEntry(e))
				last = e.Seq
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func formatEntry(e events.Entry) string {
	return fmt.Sprintf("[%s] %-7s %s", e.Timestamp.Format("15:04:05"), e.Severity, e.Message)
}
