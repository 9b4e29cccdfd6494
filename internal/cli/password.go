// AngelaMos | 2026
// password.go

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

type hashResult struct {
	Hash string `json:"hash"`
}

// NewHashPasswordCommand prints an argon2id hash, for seeding accounts by
// hand. The password is read from the argument or from stdin.
func NewHashPasswordCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the argon2id hash of a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			hash, err := core.HashPassword(password)
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), opts, hashResult{Hash: hash}, func(w io.Writer) {
				fmt.Fprintln(w, hash)
			})
		},
	}
}

func readPassword(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return password, nil
}
