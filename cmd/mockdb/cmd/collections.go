package cmd

import (
	"fmt"

	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/spf13/cobra"
)

type collectionsCommand struct {
	*root
}

func collectionsCmd(r *root) *cobra.Command {
	c := &collectionsCommand{root: r}
	return &cobra.Command{
		Use:     "collections",
		Aliases: []string{"ls"},
		Short:   "List the collections of the database",
		Args:    cobra.NoArgs,
		RunE:    c.RunE,
	}
}

func (c *collectionsCommand) RunE(cmd *cobra.Command, _ []string) error {
	names, err := c.db.Collections(cmd.Context())
	if err != nil {
		return err
	}
	return writeOutput(c.out(cmd), c.output, map[string]any{
		"database":    c.db.Name(),
		"collections": names,
	})
}

type dropCommand struct {
	*root
}

func dropCmd(r *root) *cobra.Command {
	c := &dropCommand{root: r}
	return &cobra.Command{
		Use:   "drop <collection>",
		Short: "Delete a collection and all of its documents",
		Args:  cobra.ExactArgs(1),
		RunE:  c.RunE,
	}
}

func (c *dropCommand) RunE(cmd *cobra.Command, args []string) error {
	if err := persistence.ValidateName(args[0]); err != nil {
		return err
	}
	if err := c.db.DropCollection(cmd.Context(), args[0]); err != nil {
		return err
	}
	return writeOutput(c.out(cmd), c.output, map[string]any{
		"dropped": args[0],
	})
}

type renameCommand struct {
	*root
}

func renameCmd(r *root) *cobra.Command {
	c := &renameCommand{root: r}
	return &cobra.Command{
		Use:     "rename <collection> <new-name>",
		Aliases: []string{"mv"},
		Short:   "Rename a collection",
		Long:    `Rename a collection. The rename is refused when a collection with the new name already exists.`,
		Args:    cobra.ExactArgs(2),
		RunE:    c.RunE,
	}
}

func (c *renameCommand) RunE(cmd *cobra.Command, args []string) error {
	exists, err := c.db.HasCollection(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, args[0])
	}
	coll, err := c.collection(cmd, args[0])
	if err != nil {
		return err
	}
	if !coll.Rename(cmd.Context(), args[1]) {
		return fmt.Errorf("could not rename collection '%s' to '%s'", args[0], args[1])
	}
	return writeOutput(c.out(cmd), c.output, map[string]any{
		"from": args[0],
		"to":   args[1],
	})
}

type statsCommand struct {
	*root
}

func statsCmd(r *root) *cobra.Command {
	c := &statsCommand{root: r}
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the document count of every collection",
		Args:  cobra.NoArgs,
		RunE:  c.RunE,
	}
}

func (c *statsCommand) RunE(cmd *cobra.Command, _ []string) error {
	stats, err := c.db.Stats(cmd.Context())
	if err != nil {
		return err
	}
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	return writeOutput(c.out(cmd), c.output, map[string]any{
		"database":    c.db.Name(),
		"collections": stats,
		"documents":   total,
	})
}
