package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"studyhub/client"
	"studyhub/client/localstore"
	"studyhub/client/optimistic"
	"studyhub/client/poll"
)

var (
	serverURL string
	statePath string
)

func init() {
	RemoteCommand.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "StudyHub server url")
	RemoteCommand.PersistentFlags().StringVar(&statePath, "state", defaultStatePath(), "local state file")

	LoginCommand.Flags().String("email", "", "email address")
	LoginCommand.Flags().String("password", "", "password")

	WatchDoubtsCommand.Flags().String("tag", "", "only doubts with this tag")
	WatchDoubtsCommand.Flags().Bool("mine", false, "only my doubts")
	WatchDoubtsCommand.Flags().Duration("interval", 30*time.Second, "poll interval")

	DraftCommand.Flags().String("title", "", "new title")
	DraftCommand.Flags().String("content", "", "new content")
	PushCommand.Flags().Bool("force", false, "overwrite newer server copies without asking")

	RemoteCommand.AddCommand(&LoginCommand)
	RemoteCommand.AddCommand(&LogoutCommand)
	RemoteCommand.AddCommand(&WhoamiCommand)
	RemoteCommand.AddCommand(&WatchDoubtsCommand)
	RemoteCommand.AddCommand(&DraftCommand)
	RemoteCommand.AddCommand(&PushCommand)
	RootCmd.AddCommand(&RemoteCommand)
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "studyhub.db"
	}
	return filepath.Join(home, ".studyhub.db")
}

var RemoteCommand = cobra.Command{
	Use:   "remote",
	Short: "Talk to a running StudyHub server as a user",
}

var LoginCommand = cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		return withClient(func(c *client.Client, _ *localstore.Store) error {
			user, err := c.Login(commandContext(cmd), email, password)
			if err != nil {
				return userError(err)
			}
			return printJSON(cmd.OutOrStdout(), user)
		})
	},
}

var LogoutCommand = cobra.Command{
	Use:   "logout",
	Short: "Forget the session and every local draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client, store *localstore.Store) error {
			if err := c.Logout(); err != nil {
				return err
			}
			return store.ClearAll()
		})
	},
}

var WhoamiCommand = cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client, _ *localstore.Store) error {
			user, err := c.Me(commandContext(cmd))
			if err != nil {
				return userError(err)
			}
			return printJSON(cmd.OutOrStdout(), user)
		})
	},
}

var WatchDoubtsCommand = cobra.Command{
	Use:   "watch-doubts",
	Short: "Print doubts as they are asked and answered",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		mine, _ := cmd.Flags().GetBool("mine")
		interval, _ := cmd.Flags().GetDuration("interval")

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withClient(func(c *client.Client, _ *localstore.Store) error {
			err := watchDoubts(ctx, c, client.DoubtFilter{Tag: tag, Mine: mine}, interval, cmd.OutOrStdout(), logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

var DraftCommand = cobra.Command{
	Use:   "draft <note-id>",
	Short: "Save an offline edit of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client, store *localstore.Store) error {
			note, err := c.GetNote(commandContext(cmd), args[0])
			if err != nil {
				return userError(err)
			}
			draft := localstore.Draft{
				NoteID:        note.ID,
				Title:         note.Title,
				Content:       note.Content,
				Tags:          note.Tags,
				BaseUpdatedAt: note.UpdatedAt,
			}
			if cmd.Flags().Changed("title") {
				draft.Title, _ = cmd.Flags().GetString("title")
			}
			if cmd.Flags().Changed("content") {
				draft.Content, _ = cmd.Flags().GetString("content")
			}
			return store.SaveDraft(draft)
		})
	},
}

var PushCommand = cobra.Command{
	Use:   "push <note-id>",
	Short: "Send a saved draft to the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		prompt := askOverwrite(cmd.InOrStdin(), cmd.OutOrStdout())
		if force {
			prompt = func(context.Context, error) bool { return true }
		}
		return withClient(func(c *client.Client, store *localstore.Store) error {
			note, err := pushDraft(commandContext(cmd), c, store, args[0], prompt)
			if err != nil {
				return userError(err)
			}
			return printJSON(cmd.OutOrStdout(), note)
		})
	},
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func withClient(fn func(*client.Client, *localstore.Store) error) error {
	store, err := localstore.Open(statePath)
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	defer store.Close()

	session := client.NewSession(store)
	unsubscribe := session.Subscribe(func(reason client.Reason) {
		logger.WithField("reason", reason).Warn("session rejected by the server, run remote login")
	})
	defer unsubscribe()

	return fn(client.New(serverURL, session, client.WithLogger(logger)), store)
}

// userError keeps the server's wording for errors a user can act on.
func userError(err error) error {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	return errors.New(apiErr.UserMessage())
}

func watchDoubts(ctx context.Context, c *client.Client, filter client.DoubtFilter, interval time.Duration, out io.Writer, log logrus.FieldLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unsubscribe := c.Session().Subscribe(func(client.Reason) { cancel() })
	defer unsubscribe()

	seen := map[string]time.Time{}
	poller := poll.New(poll.Config{Interval: interval, Jitter: interval / 10, Immediate: true}, func(ctx context.Context) error {
		doubts, err := c.ListDoubts(ctx, filter)
		if err != nil {
			return err
		}
		for _, d := range doubts {
			if last, ok := seen[d.ID]; ok && !d.UpdatedAt.After(last) {
				continue
			}
			seen[d.ID] = d.UpdatedAt
			status := "open"
			if d.Resolved {
				status = "resolved"
			}
			fmt.Fprintf(out, "%s\t%s\t%d answers\t%s\n", d.ID, status, len(d.Answers), d.Question)
		}
		return nil
	}, log)

	err := poller.Run(ctx)
	if !c.Session().Authenticated() {
		return errors.New("session expired")
	}
	return err
}

// pushDraft sends a draft as an optimistic update. The staleness check uses
// the version the draft started from; prompt decides whether a newer server
// copy is overwritten. The draft is kept unless the server accepted it.
func pushDraft(ctx context.Context, c *client.Client, store *localstore.Store, noteID string, prompt optimistic.Prompt) (client.Note, error) {
	draft, err := store.Draft(noteID)
	if err != nil {
		return client.Note{}, fmt.Errorf("no draft for note %s: %w", noteID, err)
	}
	current, err := c.GetNote(ctx, noteID)
	if err != nil {
		return client.Note{}, err
	}

	notes := optimistic.NewStore(map[string]client.Note{current.ID: current})
	local := current
	local.Title = draft.Title
	local.Content = draft.Content
	local.Tags = draft.Tags

	send := func(ctx context.Context, m optimistic.Mutation[client.Note]) (client.Note, string, error) {
		update := client.NoteUpdate{Title: &m.Value.Title, Content: &m.Value.Content, Tags: &m.Value.Tags}
		if !m.Overwrite && !draft.BaseUpdatedAt.IsZero() {
			update.UpdatedAt = &draft.BaseUpdatedAt
		}
		saved, err := c.UpdateNote(ctx, m.Key, update)
		return saved, saved.ID, err
	}
	mutation := optimistic.Mutation[client.Note]{ID: "push-" + noteID, Op: optimistic.Update, Key: noteID, Value: local}
	if err := notes.Run(ctx, mutation, send, prompt); err != nil {
		return client.Note{}, err
	}

	if err := store.DeleteDraft(noteID); err != nil {
		return client.Note{}, err
	}
	return notes.Snapshot().Items[noteID], nil
}

func askOverwrite(in io.Reader, out io.Writer) optimistic.Prompt {
	reader := bufio.NewReader(in)
	return func(_ context.Context, conflict error) bool {
		fmt.Fprint(out, "The note changed on the server since the draft was made. Overwrite it? [y/N] ")
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}
