package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"trip_planner/internal/analyzer"
	"trip_planner/internal/bootstrap"
	"trip_planner/internal/domain"
	"trip_planner/internal/orchestrator"
	"trip_planner/internal/shared"
)

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "tripctl",
		Short:         "Operate the trip planner from a terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")

	root.AddCommand(newAskCmd(&envFile), newAnalyzeCmd(), newLexiconCmd())
	return root
}

func newAskCmd(envFile *string) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run one orchestration; progress goes to stderr, the result JSON to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.Load(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []orchestrator.Option{orchestrator.WithProgress(progressPrinter(cmd.ErrOrStderr()))}
			if lang != "" {
				opts = append(opts, orchestrator.WithLanguage(lang))
			}
			res, err := a.Orchestrator.Orchestrate(ctx, strings.Join(args, " "), nil, opts...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "summary language (it or en)")
	return cmd
}

func progressPrinter(w io.Writer) orchestrator.Sink {
	return orchestrator.FuncSink(func(e orchestrator.Event) {
		switch e.Type {
		case orchestrator.EventAgentStart:
			fmt.Fprintf(w, "-> %s\n", e.Domain)
		case orchestrator.EventAgentComplete:
			n := 0
			if e.RecordsFound != nil {
				n = *e.RecordsFound
			}
			fmt.Fprintf(w, "<- %s: %d records\n", e.Domain, n)
		case orchestrator.EventError:
			fmt.Fprintf(w, "error: %s\n", e.Message)
		case orchestrator.EventComplete:
			fmt.Fprintln(w, e.Message)
		default:
			fmt.Fprintf(w, "%s\n", e.Type)
		}
	})
}

func newAnalyzeCmd() *cobra.Command {
	var lexPath string
	cmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Show how a query is analyzed without calling any backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lex *analyzer.Lexicon
			if lexPath != "" {
				l, err := analyzer.LoadFile(lexPath)
				if err != nil {
					return err
				}
				lex = l
			}
			cc := domain.NewConversationContext(strings.Join(args, " "), nil, 0)
			if cc.Query() == "" {
				return domain.ErrEmptyQuery
			}
			return printJSON(cmd.OutOrStdout(), analyzer.New(lex).Analyze(cc))
		},
	}
	cmd.Flags().StringVar(&lexPath, "lexicon", "", "lexicon YAML to use instead of the embedded default")
	return cmd
}

func newLexiconCmd() *cobra.Command {
	lex := &cobra.Command{Use: "lexicon", Short: "Lexicon table tools"}
	lex.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a lexicon YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := analyzer.LoadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range domain.All {
				fmt.Fprintf(out, "%-10s %d terms\n", d, len(l.DomainTerms(d)))
			}
			fmt.Fprintf(out, "thresholds: %+v\n", l.Thresholds)
			fmt.Fprintln(out, "ok")
			return nil
		},
	})
	return lex
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
