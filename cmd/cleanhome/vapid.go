package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cleanhome/internal/reminder"
)

func vapidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid",
		Short: "Generate a VAPID key pair for push reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := reminder.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CLEANHOME_VAPID_PUBLIC_KEY=%s\n", pub)
			fmt.Fprintf(out, "CLEANHOME_VAPID_PRIVATE_KEY=%s\n", priv)
			return nil
		},
	}
}
