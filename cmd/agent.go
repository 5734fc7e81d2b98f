package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camposer/agentrelay/internal/config"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent store administration",
	}
	cmd.AddCommand(agentListCmd())
	return cmd
}

func agentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents in the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			agents, closeStore, err := openAgentStore(cfg)
			if err != nil {
				return fmt.Errorf("open agent store: %w", err)
			}
			if closeStore != nil {
				defer closeStore()
			}

			list, err := agents.List(context.Background())
			if err != nil {
				return fmt.Errorf("list agents: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("no agents")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODEL\tSKILLS\tWEBHOOK")
			for _, a := range list {
				webhook := a.WebhookURL
				if webhook == "" {
					webhook = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", a.ID, a.Name, a.Model, len(a.Skills), webhook)
			}
			return w.Flush()
		},
	}
}
