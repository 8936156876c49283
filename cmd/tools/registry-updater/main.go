// cmd/tools/registry-updater/main.go
package main

import (
	"fmt"
	"os"
	"strconv"

	"premium-push-workers/pkg/registry"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var registryPath string

func main() {
	root := &cobra.Command{
		Use:           "registry-updater",
		Short:         "Maintain the activity registry served by the worker manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&registryPath, "path", "configs/activity-registry.json", "path to registry file")
	root.AddCommand(newListCommand(), newAddCommand(), newUpdateCommand(), newValidateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Task Type", "Version", "Status", "Timeout", "Retries"})
			for _, a := range reg.Activities {
				table.Append([]string{a.TaskType, a.Version, a.ImplementationStatus, a.Timeout, strconv.Itoa(a.Retries)})
			}
			table.Render()
			return nil
		},
	}
}

func newAddCommand() *cobra.Command {
	var a registry.Activity

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new activity to the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(registryPath)
			if os.IsNotExist(err) {
				reg = &registry.ActivityRegistry{Version: "1.0.0"}
			} else if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}

			if a.TaskType == "" {
				a.TaskType = a.ID
			}
			a.InputSchema = map[string]interface{}{}
			a.OutputSchema = map[string]interface{}{}
			if err := reg.Add(a); err != nil {
				return err
			}
			if err := registry.SaveRegistry(reg, registryPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added activity: %s\n", a.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&a.ID, "id", "", "activity ID (e.g. dispatch-premium-push)")
	cmd.Flags().StringVar(&a.DisplayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&a.Description, "description", "", "description")
	cmd.Flags().StringVar(&a.Category, "category", "access", "category")
	cmd.Flags().StringVar(&a.TaskType, "task-type", "", "job type, defaults to the ID")
	cmd.Flags().StringVar(&a.Version, "version", "1.0.0", "version")
	cmd.Flags().StringVar(&a.ImplementationStatus, "status", registry.StatusPlanned, "planned, in-progress, completed or verified")
	cmd.Flags().StringVar(&a.Timeout, "timeout", "30s", "job timeout")
	cmd.Flags().IntVar(&a.Retries, "retries", 3, "job retries")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("display-name")
	return cmd
}

func newUpdateCommand() *cobra.Command {
	var id, field, value string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a field of an existing activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Update(id, field, value); err != nil {
				return err
			}
			if err := registry.SaveRegistry(reg, registryPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", id, field, value)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "activity ID to update")
	cmd.Flags().StringVar(&field, "field", "", "status, version, displayName, description, timeout or retries")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the registry file and its schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("registry validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}
}
