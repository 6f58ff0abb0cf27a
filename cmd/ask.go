package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/session"
)

var (
	askWebSearch bool
	askFiles     []string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question without the interactive chat",
	Long: `Ask submits one question and prints the reply. The turn goes into the
persisted current conversation when one exists; otherwise a new
conversation is created and remembered.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askWebSearch, "web", false, "enrich the answer with web search")
	askCmd.Flags().StringArrayVarP(&askFiles, "file", "f", nil, "attach a file (repeatable)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := setup(true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	files := make([]client.File, 0, len(askFiles))
	for _, path := range askFiles {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("attaching %s: %w", path, err)
		}
		files = append(files, client.File{Name: filepath.Base(path), Path: path})
	}

	if _, err := a.manager.LoadConversations(ctx); err != nil {
		return err
	}

	// Continue the remembered conversation when it still exists.
	if id, err := session.LoadCurrentConversationID(); err == nil && id != "" {
		for _, c := range a.manager.Conversations() {
			if c.ID == id {
				if err := a.manager.Select(ctx, id); err != nil {
					return err
				}
				break
			}
		}
	}

	reply, err := a.manager.Send(ctx, question, files, askWebSearch)
	if err != nil {
		return err
	}

	fmt.Println(reply.Content)
	return nil
}
