package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/synapse/internal/llm"
	"github.com/abhisek/synapse/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded LLM requests",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: purpose})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No LLM events found.")
			return nil
		}

		cols := []column{
			{title: "ID", width: 36},
			{title: "Timestamp", width: 19},
			{title: "Purpose", width: 14},
			{title: "Model", width: 28},
			{title: "In", width: 6, right: true},
			{title: "Out", width: 6, right: true},
			{title: "Ms", width: 7, right: true},
			{title: "OK", width: 2},
		}
		fmt.Fprintln(out, renderHeader(cols))
		for _, e := range events {
			style, ok := bodyStyle, "✓"
			if !e.Success {
				style, ok = errorStyle, "✗"
			}
			fmt.Fprintln(out, renderRow(cols, []string{
				e.ID,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Purpose,
				truncate(e.Model, 28),
				strconv.Itoa(e.InputTokens),
				strconv.Itoa(e.OutputTokens),
				strconv.FormatInt(e.LatencyMs, 10),
				ok,
			}, style))
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View the full request and response of an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %s not found", args[0])
		}

		out := cmd.OutOrStdout()
		sep := dimStyle.Render(strings.Repeat("─", 60))

		fmt.Fprintf(out, "ID:        %s\n", e.ID)
		fmt.Fprintf(out, "Time:      %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Provider:  %s\n", e.Provider)
		fmt.Fprintf(out, "Model:     %s\n", e.Model)
		fmt.Fprintf(out, "Purpose:   %s\n", e.Purpose)
		fmt.Fprintf(out, "Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
		fmt.Fprintf(out, "Latency:   %dms\n", e.LatencyMs)
		fmt.Fprintf(out, "Success:   %v\n", e.Success)
		if e.ErrorMessage != "" {
			fmt.Fprintf(out, "Error:     %s\n", errorStyle.Render(e.ErrorMessage))
		}

		for _, section := range []struct{ title, body string }{
			{"REQUEST", e.RequestBody},
			{"RESPONSE", e.ResponseBody},
		} {
			fmt.Fprintln(out)
			fmt.Fprintln(out, sep)
			fmt.Fprintln(out, headerStyle.Render(section.title))
			fmt.Fprintln(out, sep)
			if section.body == "" {
				fmt.Fprintln(out, dimStyle.Render("(not captured)"))
				continue
			}
			fmt.Fprintln(out, section.body)
		}
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		repo := s.EventRepo()
		stats, err := repo.LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(stats) == 0 {
			fmt.Fprintln(out, "No LLM usage recorded yet.")
			return nil
		}

		fmt.Fprintln(out, titleStyle.Render("Usage by Purpose"))
		cols := []column{
			{title: "Purpose", width: 16},
			{title: "Calls", width: 6, right: true},
			{title: "Input", width: 10, right: true},
			{title: "Output", width: 10, right: true},
			{title: "Total", width: 10, right: true},
			{title: "Avg Ms", width: 8, right: true},
		}
		fmt.Fprintln(out, renderHeader(cols))

		var totalCalls, totalIn, totalOut int
		for _, st := range stats {
			fmt.Fprintln(out, renderRow(cols, []string{
				st.Purpose,
				strconv.Itoa(st.Calls),
				strconv.Itoa(st.InputTokens),
				strconv.Itoa(st.OutputTokens),
				strconv.Itoa(st.InputTokens + st.OutputTokens),
				strconv.FormatInt(st.AvgLatencyMs, 10),
			}, bodyStyle))
			totalCalls += st.Calls
			totalIn += st.InputTokens
			totalOut += st.OutputTokens
		}
		fmt.Fprintln(out, rule(cols))
		fmt.Fprintln(out, renderRow(cols, []string{
			"TOTAL", strconv.Itoa(totalCalls), strconv.Itoa(totalIn), strconv.Itoa(totalOut), strconv.Itoa(totalIn + totalOut),
		}, headerStyle))

		modelUsage, err := repo.LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(modelUsage) == 0 {
			return nil
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render("Estimated Cost (USD)"))
		costCols := []column{
			{title: "Model", width: 32},
			{title: "Calls", width: 6, right: true},
			{title: "Input", width: 10, right: true},
			{title: "Output", width: 10, right: true},
			{title: "Cost", width: 10, right: true},
		}
		fmt.Fprintln(out, renderHeader(costCols))

		var totalCost float64
		var unknownModels []string
		for _, mu := range modelUsage {
			cost := "?"
			if mc := llm.LookupCost(mu.Model); mc != nil {
				c := mc.Cost(mu.InputTokens, mu.OutputTokens)
				totalCost += c
				cost = formatCost(c)
			} else {
				unknownModels = append(unknownModels, mu.Model)
			}
			fmt.Fprintln(out, renderRow(costCols, []string{
				truncate(mu.Model, 32), strconv.Itoa(mu.Calls), strconv.Itoa(mu.InputTokens), strconv.Itoa(mu.OutputTokens), cost,
			}, bodyStyle))
		}

		fmt.Fprintln(out, rule(costCols))
		label := "TOTAL"
		if len(unknownModels) > 0 {
			label = "TOTAL (partial)"
		}
		fmt.Fprintln(out, renderRow(costCols, []string{label, "", "", "", formatCost(totalCost)}, headerStyle))
		if len(unknownModels) > 0 {
			fmt.Fprintf(out, "\nPricing unavailable for: %s\n", strings.Join(unknownModels, ", "))
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (hint or challenge-gen)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
