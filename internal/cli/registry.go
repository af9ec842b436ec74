package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hajj-assistant/pkg/registry"
)

var now = time.Now

func RegistryCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Maintain the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "configs/activity-registry.json", "Path to registry file")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the registry file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return registryValidate(cmd.OutOrStdout(), path)
		},
	}

	var a registry.Activity
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a new activity to the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.TaskType == "" {
				a.TaskType = a.ID
			}
			return registryAdd(cmd.OutOrStdout(), path, a)
		},
	}
	add.Flags().StringVar(&a.ID, "id", "", "Activity ID (e.g. notify-hotline)")
	add.Flags().StringVar(&a.DisplayName, "display-name", "", "Display name")
	add.Flags().StringVar(&a.Description, "description", "", "Description")
	add.Flags().StringVar(&a.Category, "category", "", "Category (e.g. assistant, registry, reporting)")
	add.Flags().StringVar(&a.TaskType, "task-type", "", "Job type (defaults to the ID)")
	add.Flags().StringVar(&a.Version, "version", "1.0.0", "Version")
	add.Flags().StringVar(&a.ImplementationStatus, "status", "planned", "planned, in-progress, completed or verified")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("display-name")
	_ = add.MarkFlagRequired("category")

	update := &cobra.Command{
		Use:     "update <id> <field> <value>",
		Short:   "Update one field of an activity",
		Example: "  hajjctl registry update match-agency status verified\n  hajjctl registry update query-agencies retries 2",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registryUpdate(cmd.OutOrStdout(), path, args[0], args[1], args[2])
		},
	}

	cmd.AddCommand(validate, add, update)
	return cmd
}

func registryValidate(out io.Writer, path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Fprintf(out, "Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func registryAdd(out io.Writer, path string, a registry.Activity) error {
	reg, err := registry.LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		reg, err = registry.New(now()), nil
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if err := reg.Add(a, now()); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := reg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Added activity: %s\n", a.ID)
	return nil
}

func registryUpdate(out io.Writer, path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Update(id, field, value, now()); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := reg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated activity %s, field %s to %s\n", id, field, value)
	return nil
}
