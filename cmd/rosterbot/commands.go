package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/rosterbot/internal/config"
)

// --- chat / ask ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive staffing chat against a running server",
	Long: `Start an interactive session. Each line is sent to the server's /chat
endpoint and the recommendation is printed. Type "exit" or press Ctrl-D to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runChatLoop(cmd.Context(), client, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask a single staffing question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("query is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		answer, err := client.chat(cmd.Context(), query)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

// runChatLoop reads queries line by line until EOF or "exit". Request
// failures are reported and the session continues.
func runChatLoop(ctx context.Context, client *apiClient, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, colorize(colorBold, "HR Resource Query Chatbot")+` (type "exit" to quit)`)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorCyan, "you> "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}

		query := strings.TrimSpace(sc.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := client.chat(ctx, query)
		if errors.Is(err, errUnreachable) {
			fmt.Fprintln(out, colorize(colorRed, "Could not connect to the API. Please ensure the backend is running."))
			continue
		}
		if err != nil {
			fmt.Fprintln(out, colorize(colorRed, err.Error()))
			continue
		}
		fmt.Fprintf(out, "%s %s\n\n", colorize(colorGreen, "bot>"), answer)
	}
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Filter the roster by skill and/or minimum experience",
	Long: `Filter the roster by skill and/or minimum experience.

Examples:
  rosterbot search --skill python
  rosterbot search --skill react --min-exp 3
  rosterbot search --min-exp 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		skill, _ := cmd.Flags().GetString("skill")
		var minExp *int
		if cmd.Flags().Changed("min-exp") {
			n, _ := cmd.Flags().GetInt("min-exp")
			minExp = &n
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		employees, err := client.searchEmployees(cmd.Context(), skill, minExp)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(employees)
		}
		printEmployees(cmd.OutOrStdout(), employees)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("skill", "", "skill to match (case-insensitive, whole name)")
	searchCmd.Flags().Int("min-exp", 0, "minimum years of experience")
	searchCmd.Flags().Bool("json", false, "print raw JSON")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse answered queries",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		interactions, err := client.interactions(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(interactions) == 0 {
			fmt.Fprintln(out, "No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			query := ix.Query
			if r := []rune(query); len(r) > 80 {
				query = string(r[:80]) + "..."
			}
			id := ix.ID
			if len(id) > 8 {
				id = id[:8]
			}
			marker := ""
			if ix.Degraded {
				marker = colorize(colorRed, " [degraded]")
			}
			fmt.Fprintf(out, "%s  %s  %s%s\n",
				colorize(colorCyan, id),
				ix.CreatedAt.Format("2006-01-02 15:04:05"),
				query,
				marker,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		interaction, err := client.interaction(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value in the config file.

Valid keys: %s

API keys are read only from the environment (or a .env file).`, strings.Join(config.ValidKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
