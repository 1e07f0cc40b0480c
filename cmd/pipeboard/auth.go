package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/npratt/pipeboard/internal/auth"
)

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored API token",
	}

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStdin, _ := cmd.Flags().GetBool(FlagWithToken)
			tok, err := a.readToken(fromStdin)
			if err != nil {
				return err
			}
			if tok == "" {
				return errors.New("token is empty")
			}
			if err := a.store.Save(tok); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "Token saved to %s\n", a.store.Describe())
			return nil
		},
	}
	loginCmd.Flags().Bool(FlagWithToken, false, "Read the token from standard input")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Clear(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.stdout, "Logged out")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printField(a.stdout, "Store", a.store.Describe())
			if tok := a.v.GetString(FlagToken); tok != "" {
				printField(a.stdout, "Token", maskToken(tok)+" (from --token)")
				return nil
			}
			tok, err := auth.Load(a.store)
			switch {
			case errors.Is(err, auth.ErrNoToken):
				printField(a.stdout, "Token", "not set")
				return nil
			case err != nil:
				return err
			}
			printField(a.stdout, "Token", maskToken(tok))
			return nil
		},
	}

	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
	return authCmd
}

// readToken reads one line from stdin, prompting without echo when stdin
// is a terminal.
func (a *app) readToken(fromStdin bool) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(a.stderr, "Paste your token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func maskToken(tok string) string {
	if len(tok) <= 8 {
		return strings.Repeat("*", len(tok))
	}
	return tok[:4] + strings.Repeat("*", 4) + tok[len(tok)-4:]
}
