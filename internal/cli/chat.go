package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/soyeahso/finchat/internal/auth"
	"github.com/soyeahso/finchat/internal/config"
	"github.com/soyeahso/finchat/internal/domain"
	"github.com/soyeahso/finchat/internal/gateway"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const maxLoginAttempts = 3

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Log in and chat with the finance bot in the terminal",
		Long: "Runs the chat locally against the configured databases and LLM.\n" +
			"Commands: /history, /whoami, /quit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if issues := config.Validate(&cfg); len(issues) > 0 {
				return fmt.Errorf("config invalid: %s", issues[0])
			}

			st, err := openStack(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			in := bufio.NewReader(cmd.InOrStdin())
			repl := &chatREPL{
				in:      in,
				out:     cmd.OutOrStdout(),
				login:   st.auth,
				chat:    st.dispatch,
				history: st.memory,
				timeout: cfg.Chat.Timeout(),
			}
			repl.readSecret = func(prompt string) (string, error) {
				fd := int(os.Stdin.Fd())
				if !term.IsTerminal(fd) {
					return repl.readLine(prompt)
				}
				fmt.Fprint(repl.out, prompt)
				b, err := term.ReadPassword(fd)
				fmt.Fprintln(repl.out)
				return string(b), err
			}
			return repl.run(ctx)
		},
	}
}

// chatREPL is the terminal chat: a login prompt followed by a read loop.
type chatREPL struct {
	in         *bufio.Reader
	out        io.Writer
	readSecret func(prompt string) (string, error)
	login      gateway.Authenticator
	chat       gateway.Dispatcher
	history    gateway.HistoryReader
	timeout    time.Duration
}

func (r *chatREPL) run(ctx context.Context) error {
	user, err := r.authenticate(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "\n%s\n", gateway.WelcomeMessage)
	fmt.Fprintf(r.out, "%s\n\n", color.HiBlackString("Logged in as %s (%s). Type /quit to leave.", user.Name, user.Department))

	for {
		line, err := r.readLine(color.GreenString("> "))
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/whoami":
			fmt.Fprintf(r.out, "%s <%s> %s, %s\n", user.Name, user.Email, user.PositionNumber, user.Department)
			continue
		case "/history":
			turns, err := r.history.LoadHistory(ctx, user.SessionID)
			if err != nil {
				fmt.Fprintln(r.out, color.RedString("could not load history: %v", err))
				continue
			}
			printTurns(r.out, turns)
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		r.send(ctx, line, user.SessionID)
	}
}

// authenticate prompts for email and name until a login succeeds or the
// attempts run out.
func (r *chatREPL) authenticate(ctx context.Context) (*domain.AuthenticatedUser, error) {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		email, err := r.readLine("Email: ")
		if err != nil {
			return nil, err
		}
		name, err := r.readSecret("Name: ")
		if err != nil {
			return nil, err
		}

		user, err := r.login.Login(ctx, email, name)
		if errors.Is(err, auth.ErrLoginRejected) {
			fmt.Fprintln(r.out, color.RedString("Invalid email or name."))
			continue
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, fmt.Errorf("%w after %d attempts", auth.ErrLoginRejected, maxLoginAttempts)
}

func (r *chatREPL) send(ctx context.Context, message, sessionID string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.chat.Dispatch(ctx, message, sessionID)
	if err != nil {
		fmt.Fprintln(r.out, color.RedString("⚠️ Error: %v", err))
		return
	}
	if reply.Kind == domain.TurnError {
		color.New(color.FgRed).Fprintln(r.out, reply.Response)
		return
	}
	fmt.Fprintf(r.out, "%s\n%s\n", reply.Response, color.HiBlackString("(%s)", reply.Duration.Round(time.Millisecond)))
}

func (r *chatREPL) readLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
