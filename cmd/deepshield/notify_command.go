package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deepshield/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test event to the configured notification sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" && cfg.Notifications.NATSURL == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification sinks configured")
				return nil
			}
			notifier, err := notifications.NewService(cfg)
			if err != nil {
				return err
			}
			defer notifier.Close()
			if err := notifier.Publish(context.WithoutCancel(cmd.Context()), notifications.EventTest, notifications.Payload{
				"message": "DeepShield notifications are configured",
			}); err != nil {
				return fmt.Errorf("publish test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
