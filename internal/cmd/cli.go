package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/api"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/config"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/db"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/logging"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/mcpserver"
)

var (
	suggestSubject    string
	suggestModel      string
	suggestSpecialist string
	suggestLang       string

	runTopic      string
	runModel      string
	runSpecialist string
	runLangs      []string

	historyLimit int
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest conversation topics for a subject",
	Example: `  ttsdesk suggest --subject travel
  ttsdesk suggest --subject "job interview" --lang es --model reasoning`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a spoken conversation for a topic",
	Long: `Generate a spoken conversation for a topic and print the backend
output, the audio URL and the transcript. The run is saved to the history
database unless --no-history is given.`,
	Example: `  ttsdesk run --topic "Booking a hotel room" --langs en,es`,
	Args:    cobra.NoArgs,
	RunE:    runRun,
}

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Search the vector store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs and queries from the history database",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the backend endpoints as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpserver.ServeStdio(mcpserver.NewTools(newClient(), cfg.Defaults), Version)
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd, runCmd, queryCmd, historyCmd, mcpCmd)

	suggestCmd.Flags().StringVarP(&suggestSubject, "subject", "s", "", "Subject to suggest topics for")
	suggestCmd.Flags().StringVar(&suggestModel, "model", "", "Model profile: "+strings.Join(config.Models, ", "))
	suggestCmd.Flags().StringVar(&suggestSpecialist, "specialist", "", "Specialist profile: "+strings.Join(config.Specialists, ", "))
	suggestCmd.Flags().StringVar(&suggestLang, "lang", "", "Topic language: "+strings.Join(config.Languages, ", "))
	suggestCmd.MarkFlagRequired("subject")

	runCmd.Flags().StringVarP(&runTopic, "topic", "t", "", "Topic of the conversation")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model profile: "+strings.Join(config.Models, ", "))
	runCmd.Flags().StringVar(&runSpecialist, "specialist", "", "Specialist profile: "+strings.Join(config.Specialists, ", "))
	runCmd.Flags().StringSliceVar(&runLangs, "langs", nil, "Languages to generate (comma separated)")
	runCmd.MarkFlagRequired("topic")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs and queries to list")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func runSuggest(cmd *cobra.Command, args []string) error {
	client := newClient()
	req := api.SuggestRequest{
		Model:      orDefault(suggestModel, cfg.Defaults.Model),
		Specialist: orDefault(suggestSpecialist, cfg.Defaults.Specialist),
		Lang:       orDefault(suggestLang, cfg.Defaults.Lang),
		Subject:    strings.TrimSpace(suggestSubject),
	}
	if err := req.Validate(); err != nil {
		return err
	}

	tk := client.Begin(cmd.Context(), api.SlotSuggest)
	defer client.Release(tk)

	resp, err := client.SuggestTopics(tk, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan)
	cyan.Fprintf(out, "Topics for %q\n", req.Subject)
	if len(resp.Topics) == 0 {
		fmt.Fprintln(out, "  (no topics)")
		return nil
	}
	for i, topic := range resp.Topics {
		if i == 5 {
			break
		}
		fmt.Fprintf(out, "  %d. %s\n", i+1, topic)
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	client := newClient()
	langs := runLangs
	if len(langs) == 0 {
		langs = cfg.Defaults.Langs
	}
	req := api.RunRequest{
		Model:         orDefault(runModel, cfg.Defaults.Model),
		Specialist:    orDefault(runSpecialist, cfg.Defaults.Specialist),
		Langs:         langs,
		SelectedTopic: strings.TrimSpace(runTopic),
	}
	if err := req.Validate(); err != nil {
		return err
	}

	tk := client.Begin(cmd.Context(), api.SlotRun)
	defer client.Release(tk)

	resp, err := client.RunTTS(tk, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if text := strings.TrimSpace(resp.Output); text != "" {
		cyan.Fprintln(out, "Output")
		fmt.Fprintln(out, text)
		fmt.Fprintln(out)
	}

	res, err := client.ResolveAudio(tk, resp)
	switch {
	case errors.Is(err, api.ErrAudioNotFound):
		yellow.Fprintln(out, "Audio not found")
	case err != nil:
		return err
	default:
		green.Fprintf(out, "Audio: %s\n", res.URL)
		if len(res.Transcript) > 0 {
			fmt.Fprintln(out)
			cyan.Fprintln(out, "Transcript")
			writeTranscript(out, res.Transcript.Render())
		}
	}

	if !noHistory {
		saveRun(req, resp, res)
	}
	return nil
}

func writeTranscript(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

func saveRun(req api.RunRequest, resp api.RunResponse, res api.AudioResolution) {
	log := logging.WithComponent("cmd")
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Warn("history unavailable", "error", err)
		return
	}
	defer store.Close()

	run := &db.Run{
		Topic:      req.SelectedTopic,
		Model:      req.Model,
		Specialist: req.Specialist,
		Langs:      req.Langs,
		Output:     strings.TrimSpace(resp.Output),
		AudioURL:   res.URL,
	}
	if err := store.SaveRun(run, res.Transcript); err != nil {
		log.Warn("failed to save run", "error", err)
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	client := newClient()
	req := api.QueryRequest{QueryText: strings.TrimSpace(strings.Join(args, " "))}
	if err := req.Validate(); err != nil {
		return err
	}

	tk := client.Begin(cmd.Context(), api.SlotQuery)
	defer client.Release(tk)

	resp, err := client.QueryQdrant(tk, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	data := strings.TrimSpace(resp.Data)
	if data == "" {
		fmt.Fprintln(out, "(no results)")
	} else {
		fmt.Fprintln(out, data)
	}

	if !noHistory {
		if store, err := db.Open(cfg.Database.Path); err == nil {
			defer store.Close()
			if err := store.SaveQuery(&db.Query{Text: req.QueryText, Result: data}); err != nil {
				logging.WithComponent("cmd").Warn("failed to save query", "error", err)
			}
		}
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(historyLimit)
	if err != nil {
		return err
	}

	queries, err := store.RecentQueries(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan)

	cyan.Fprintln(out, "Recent runs")
	if len(runs) == 0 {
		fmt.Fprintln(out, "  (no runs)")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tCREATED\tLANGS\tTOPIC")
		for _, r := range runs {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				truncate(r.ID, 8),
				r.CreatedAt.Local().Format(time.DateTime),
				strings.Join(r.Langs, ","),
				truncate(r.Topic, 48))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(out)
	cyan.Fprintln(out, "Recent queries")
	if len(queries) == 0 {
		fmt.Fprintln(out, "  (no queries)")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  CREATED\tQUERY")
	for _, q := range queries {
		fmt.Fprintf(w, "  %s\t%s\n", q.CreatedAt.Local().Format(time.DateTime), truncate(q.Text, 60))
	}
	return w.Flush()
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
