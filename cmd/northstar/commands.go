package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/northstar-app/northstar/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask the planning assistant",
	Long: `Ask the planning assistant. The reply may include structured planning
actions (goals, projects, tasks, todos) which are printed after the text.

Examples:
  northstar ask "draft a goal to read more"
  northstar ask --proxy "plan my week"
  northstar ask --conversation 4f1f... "break that goal into projects"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")
		viaProxy, _ := cmd.Flags().GetBool("proxy")
		conversationID, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/v1/assist"
		if viaProxy {
			path = "/v1/assist/proxy"
		}

		body := map[string]any{"prompt": prompt}
		if conversationID != "" {
			body["conversationId"] = conversationID
		}

		resp, err := client.post(cmd.Context(), path, body)
		if err != nil {
			return err
		}

		var result struct {
			Text           string            `json:"text"`
			Actions        []json.RawMessage `json:"actions"`
			FromCache      bool              `json:"fromCache"`
			ConversationID string            `json:"conversationId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Text)
		if result.FromCache {
			printStep("answered from cache")
		}
		for _, raw := range result.Actions {
			var action struct {
				Type  string `json:"type"`
				Title string `json:"title"`
			}
			if json.Unmarshal(raw, &action) == nil {
				printStatus("Action", "%s: %s", action.Type, action.Title)
			}
		}
		if result.ConversationID != "" {
			printStep("conversation %s", result.ConversationID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("proxy", false, "route the request through the hosted proxy")
	askCmd.Flags().String("conversation", "", "conversation id to continue")
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a document into the knowledge base",
	Long: `Ingest a document into the knowledge base.

Examples:
  northstar ingest --text "Morning routine: gym at 7, deep work until noon"
  northstar ingest --url https://example.com/article --name "Article"
  northstar ingest --file ./goals.pdf --name "Yearly goals"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		fetchURL, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")

		if text == "" && fetchURL == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		req := map[string]any{}
		if name != "" {
			req["name"] = name
		}

		switch {
		case text != "":
			req["type"] = "text"
			req["content"] = text
		case fetchURL != "":
			req["type"] = "url"
			req["url"] = fetchURL
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			req["type"] = "file"
			req["content"] = base64.StdEncoding.EncodeToString(data)
			if name == "" {
				req["name"] = file
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/documents", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued document %s", result["id"])
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("url", "", "URL to fetch and ingest")
	ingestCmd.Flags().String("file", "", "file path to ingest (PDF or text)")
	ingestCmd.Flags().String("name", "", "name for the document")
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Semantic search over ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/recall?q=%s&limit=%d", url.QueryEscape(query), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var results []struct {
			ID       string  `json:"id"`
			SourceID string  `json:"source_id"`
			Text     string  `json:"text"`
			Score    float32 `json:"score"`
		}
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Score)
			text := r.Text
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", text)
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Manage conversation history",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/conversations?limit=%d", limit))
		if err != nil {
			return err
		}

		var conversations []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"createdAt"`
			UpdatedAt string `json:"updatedAt"`
		}
		if err := decodeJSON(resp, &conversations); err != nil {
			return err
		}

		if len(conversations) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, c := range conversations {
			fmt.Printf("%s  updated %s\n", colorize(colorCyan, c.ID[:8]), c.UpdatedAt)
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation with its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/conversations/"+args[0])
		if err != nil {
			return err
		}

		var conv struct {
			ID       string `json:"id"`
			Messages []struct {
				Role string `json:"role"`
				Text string `json:"text"`
			} `json:"messages"`
		}
		if err := decodeJSON(resp, &conv); err != nil {
			return err
		}

		for _, m := range conv.Messages {
			label := colorize(colorCyan, "["+m.Role+"]")
			fmt.Printf("%s %s\n\n", label, m.Text)
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/v1/conversations/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted conversation %s", args[0])
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().Int("limit", 20, "maximum number of conversations to list")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
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
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
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
