package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scrapp.io/client/internal/apperr"
	"scrapp.io/client/internal/category"
	"scrapp.io/client/internal/core"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = prompt(cmd, "Password: "); err != nil {
					return err
				}
			}
			if err := opts.app.Auth.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = prompt(cmd, "Password: "); err != nil {
					return err
				}
			}
			loggedIn, err := opts.app.Auth.Register(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			if loggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "Registered and logged in.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Registered. Run `scrapp login` to sign in.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show whether a credential is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.app.Session.Snapshot().Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			}
			return nil
		},
	}
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List post categories",
		Args:  cobra.NoArgs,
		// No config or storage needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s %s\n", category.All, category.All.Label())
			for _, c := range category.Categories() {
				fmt.Fprintf(out, "%-20s %s\n", c.Slug, c.Label)
			}
			return nil
		},
	}
}

func newPostsCmd(opts *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List community posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, err := category.Parse(filter)
			if err != nil {
				return err
			}

			state, _ := opts.app.Feed.SetFilter(cmd.Context(), slug)
			if state.Err != nil {
				opts.app.Logger.Error("Failed to load posts",
					zap.String("category", slug.String()), zap.Error(state.Err))
				if core.IsUnauthorized(state.Err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Your session has expired. Run `scrapp login` and try again.")
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPosts(state.Posts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "category", "c", "all", "Category slug (see `scrapp categories`)")
	return cmd
}

func newPostCmd(opts *rootOptions) *cobra.Command {
	var in core.NewPost
	var slug string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Publish a community post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if slug != "" {
				parsed, err := category.Parse(slug)
				if err != nil {
					return apperr.Validation("create post", err.Error())
				}
				in.Category = parsed
			}
			created, err := opts.app.Posts.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created post #%d in %s.\n", created.ID, created.Category.Label())
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "Post title")
	cmd.Flags().StringVarP(&in.Content, "content", "m", "", "Post body")
	cmd.Flags().StringVarP(&slug, "category", "c", "", "Category slug")
	return cmd
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var chat bool
	cmd := &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify a photo of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.app.Classifier.Classify(cmd.Context(), core.FilePhoto(args[0]))
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderBanner("Classification failed: "+apperr.UserMessage(err)))
				return fmt.Errorf("%w: %w", errReported, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderResult(result))

			if !chat {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return runChat(cmd, opts.app.Chat, opts.app.Chat.NewSessionFromResult(result))
		},
	}
	cmd.Flags().BoolVar(&chat, "chat", false, "Start a disposal chat about the result")
	return cmd
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var label, instructions string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask how to dispose of an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts.app.Chat, opts.app.Chat.NewSession(label, instructions))
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "Item category the chat is about")
	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "Disposal instructions already known")
	return cmd
}

// runChat reads one message per line until EOF or /quit.
func runChat(cmd *cobra.Command, svc *core.ChatService, sess *core.ChatSession) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTranscript(sess.History()))
	fmt.Fprintln(out, mutedStyle.Render("Type a question, or /quit to leave."))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		turn, err := svc.Send(cmd.Context(), sess, line)
		if err != nil {
			fmt.Fprintln(out, renderBanner(apperr.UserMessage(err)))
			continue
		}
		fmt.Fprintln(out, renderTurn(turn))
	}
}

func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
