package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clipstudio/credentials"
)

func newKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the OpenAI API key sent with clip requests",
	}

	keyCmd.AddCommand(newKeySetCommand(ctx))
	keyCmd.AddCommand(newKeyShowCommand(ctx))
	keyCmd.AddCommand(newKeyClearCommand(ctx))
	return keyCmd
}

func newKeySetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set [KEY]",
		Short: "Store an API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("key must not be empty")
			}

			store, err := ctx.store()
			if err != nil {
				return err
			}
			if err := store.Set(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved API key %s\n", credentials.Mask(key))
			return nil
		},
	}
}

func newKeyShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the key in use, masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if env := strings.TrimSpace(os.Getenv(credentials.EnvKey)); env != "" {
				fmt.Fprintf(out, "%s (from %s)\n", credentials.Mask(env), credentials.EnvKey)
				return nil
			}
			store, err := ctx.store()
			if err != nil {
				return err
			}
			key, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, credentials.Mask(key))
			return nil
		},
	}
}

func newKeyClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored key",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
			return nil
		},
	}
}
