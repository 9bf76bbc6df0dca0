package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shrimpzone/internal/auth"
	"github.com/roach88/shrimpzone/internal/session"
)

// backCommand returns the login prompt to email entry.
const backCommand = "back"

// errLoginAborted is returned when input ends before sign-in completes.
var errLoginAborted = errors.New("login aborted")

// Account is the JSON shape of the signed-in customer.
type Account struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func accountOf(s *session.Session) Account {
	a := Account{UserID: s.User.ID, Email: s.User.Email, Role: s.User.Role}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt.UTC()
		a.ExpiresAt = &exp
	}
	return a
}

func (a Account) text(w io.Writer) {
	fmt.Fprintf(w, "Signed in as %s", a.Email)
	if a.Role != "" {
		fmt.Fprintf(w, " (%s)", a.Role)
	}
	fmt.Fprintln(w)
	if a.ExpiresAt != nil {
		fmt.Fprintf(w, "Session expires %s\n", a.ExpiresAt.Format(time.RFC3339))
	}
}

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a one-time code",
		Long: `Sign in with a one-time code sent to your email.

You are asked for your email, then for the code. Type "back" at the code
prompt to start over with a different email.

Example:
  shrimpzone login
  shrimpzone login --email you@example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(app *App, out *OutputFormatter) error {
				return runLogin(cmd, opts, app, out)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email to send the code to (skips the first prompt)")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *LoginOptions, app *App, out *OutputFormatter) error {
	ctx := cmd.Context()
	prompts := out.GetErrWriter()
	in := bufio.NewScanner(cmd.InOrStdin())
	readLine := func(prompt string) (string, error) {
		fmt.Fprint(prompts, prompt)
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", errLoginAborted
		}
		return strings.TrimSpace(in.Text()), nil
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	email := opts.Email
	for {
		switch app.Auth.State().Step {
		case auth.StepCollectingEmail:
			if email == "" {
				line, err := readLine("Email: ")
				if err != nil {
					return failed("sign in", err)
				}
				email = line
			}
			if err := app.Auth.RequestCode(ctx, email); err != nil {
				if ctx.Err() != nil {
					return failed("sign in", err)
				}
				fmt.Fprintln(prompts, app.Auth.State().Error)
			}
			email = ""

		case auth.StepAwaitingCode:
			state := app.Auth.State()
			fmt.Fprintf(prompts, "Code sent to %s, expires in %s. Type %q to change email.\n",
				state.Email, app.Auth.ExpiresIn(now()), backCommand)
			line, err := readLine("Code: ")
			if err != nil {
				return failed("sign in", err)
			}
			if strings.EqualFold(line, backCommand) {
				if err := app.Auth.Reset(); err != nil {
					return failed("sign in", err)
				}
				continue
			}
			sess, err := app.Auth.Verify(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					return failed("sign in", err)
				}
				fmt.Fprintln(prompts, app.Auth.State().Error)
				continue
			}
			account := accountOf(sess)
			return out.Render(account, func(w io.Writer) error {
				account.text(w)
				return nil
			})

		case auth.StepAuthenticated:
			return nil
		}
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Sign out and forget the stored session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				if err := app.Sessions.End(cmd.Context()); err != nil {
					return WrapExitError(ExitCommandError, "failed to clear session", err)
				}
				return out.Render(map[string]bool{"signedOut": true}, func(w io.Writer) error {
					fmt.Fprintln(w, "Signed out")
					return nil
				})
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the signed-in customer",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				sess, err := app.Sessions.Current(cmd.Context())
				if err != nil {
					return failed("not signed in", err)
				}
				account := accountOf(sess)
				return out.Render(account, func(w io.Writer) error {
					account.text(w)
					return nil
				})
			})
		},
	}
}

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. Registering does not sign you in; run "shrimpzone login" next.

Example:
  shrimpzone register --email you@example.com --password s3cret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(app *App, out *OutputFormatter) error {
				msg, err := app.Auth.Register(cmd.Context(), opts.Email, opts.Password)
				if err != nil {
					return failed("registration failed", err)
				}
				return out.Render(map[string]string{"message": msg}, func(w io.Writer) error {
					fmt.Fprintln(w, msg)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (required)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
