package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
)

// NewCredentialsCommand groups the keyring helpers.
func NewCredentialsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.CmdCredentials,
		Short: config.DescCredentials,
	}
	cmd.AddCommand(newCredentialsSetCommand(opts))
	return cmd
}

func newCredentialsSetCommand(opts *RootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   config.CmdSet,
		Short: config.DescSet,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				user = opts.Settings.Contacts.WebUser
			}
			if user == "" {
				return errors.New(config.ErrUserRequired)
			}

			fmt.Fprint(cmd.ErrOrStderr(), config.MsgPasswordPrompt)
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("%s: %w", config.ErrPasswordInput, err)
			}
			pass := strings.TrimRight(line, "\r\n")
			if pass == "" {
				return errors.New(config.ErrPasswordEmpty)
			}

			if err := opts.credentials().SetPassword(user, pass); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), config.MsgPasswordStored, user)
			return err
		},
	}

	cmd.Flags().StringVar(&user, config.FlagUser, "", config.FlagDescUser)
	return cmd
}
