package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/chat"
	"github.com/KaramelBytes/insightgenie/internal/session"
)

var chatSessionDir string

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Interactive conversation about a dataset",
	Long: `Reads questions from stdin, one per line. Commands:
  /suggest  print suggested questions
  /clear    forget the conversation
  /quit     exit
With --session the conversation is saved after each turn and resumed on the
next run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openChatSession(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		a := connectAssistant(cmd.Context(), false)
		if n := s.History().Len(); n > 0 {
			fmt.Fprintf(out, "Resumed conversation with %d messages.\n", n)
		}
		fmt.Fprintf(out, "Loaded %s (%d rows, %d columns). Ask a question, or /quit.\n", s.Name(), s.Profile().Rows, s.Profile().Columns)

		sc := bufio.NewScanner(cmd.InOrStdin())
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for {
			fmt.Fprint(out, "> ")
			if !sc.Scan() {
				break
			}
			line := strings.TrimSpace(sc.Text())
			switch line {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/clear":
				s.History().Clear()
				fmt.Fprintln(out, "✓ Conversation cleared")
				if err := saveChatSession(s); err != nil {
					return err
				}
				continue
			case "/suggest":
				for _, q := range a.SuggestedQuestions(cmd.Context(), s.Profile()) {
					fmt.Fprintf(out, "- %s\n", q)
				}
				continue
			}
			prior := s.History().Messages()
			s.History().Append(chat.RoleUser, line)
			answer := a.Answer(cmd.Context(), line, s.Table(), s.Profile(), prior)
			s.History().Append(chat.RoleAssistant, answer)
			fmt.Fprintln(out, answer)
			if err := saveChatSession(s); err != nil {
				return err
			}
		}
		return sc.Err()
	},
}

// openChatSession restores the saved session when it matches the dataset,
// otherwise starts a fresh one from the file.
func openChatSession(path string) (*session.Session, error) {
	t, _, err := loadDataset(path)
	if err != nil {
		return nil, err
	}
	if chatSessionDir != "" {
		s, err := session.Restore(chatSessionDir, histogramBins())
		switch {
		case err == nil && s.Name() == t.Name:
			return s, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}
	s := session.New(baseName(path), histogramBins())
	if err := s.Load(t); err != nil {
		return nil, err
	}
	return s, nil
}

func saveChatSession(s *session.Session) error {
	if chatSessionDir == "" {
		return nil
	}
	return s.Save(chatSessionDir)
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSessionDir, "session", "", "directory to save and resume the conversation")
}
