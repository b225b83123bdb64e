package cmd

import (
	"fmt"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
	"github.com/spf13/cobra"
)

// target holds the selection flags shared by the document commands.
type target struct {
	*root
	id  string
	one bool
}

func (t *target) flags(cmd *cobra.Command, what string) {
	cmd.Flags().StringVar(&t.id, "id", "", "Select the document with this _id instead of using a filter")
	cmd.Flags().BoolVar(&t.one, "one", false, fmt.Sprintf("%s only the first matching document", what))
}

// filterArg parses an optional filter argument. A missing filter matches
// every document.
func filterArg(cmd *cobra.Command, args []string, i int) (*query.QueryFilter, error) {
	if len(args) <= i {
		return query.MatchAll(), nil
	}
	d, err := readObject(args[i], cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return query.Parse(d)
}

type insertCommand struct {
	*root
}

func insertCmd(r *root) *cobra.Command {
	c := &insertCommand{root: r}
	return &cobra.Command{
		Use:   "insert <collection> <document|documents>",
		Short: "Insert one document or an array of documents",
		Long: `Insert a JSON document, or every document of a JSON array, into a collection.
Use "-" to read from stdin or "@file" to read from a file.`,
		Args: cobra.ExactArgs(2),
		RunE: c.RunE,
	}
}

func (c *insertCommand) RunE(cmd *cobra.Command, args []string) error {
	coll, err := c.collection(cmd, args[0])
	if err != nil {
		return err
	}
	v, err := readInput(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}

	if elems, ok := v.Array(); ok {
		docs := make([]*document.Document, 0, len(elems))
		for i, elem := range elems {
			d, ok := elem.Document()
			if !ok {
				return fmt.Errorf("element %d: expected a JSON object, got %s", i, elem.Kind())
			}
			docs = append(docs, d)
		}
		return c.respond(cmd, coll.InsertMany(cmd.Context(), docs))
	}
	d, ok := v.Document()
	if !ok {
		return fmt.Errorf("expected a JSON object or array, got %s", v.Kind())
	}
	return c.respond(cmd, coll.InsertOne(cmd.Context(), d))
}

type findCommand struct {
	target
}

func findCmd(r *root) *cobra.Command {
	c := &findCommand{target{root: r}}
	cmd := &cobra.Command{
		Use:   "find <collection> [filter]",
		Short: "Find documents",
		Long:  `Print the documents of a collection that match a MongoDB-style filter. Without a filter every document is printed.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE:  c.RunE,
	}
	c.flags(cmd, "Return")
	return cmd
}

func (c *findCommand) RunE(cmd *cobra.Command, args []string) error {
	coll, err := c.collection(cmd, args[0])
	if err != nil {
		return err
	}
	if c.id != "" {
		return c.respond(cmd, coll.FindByID(cmd.Context(), c.id))
	}
	filter, err := filterArg(cmd, args, 1)
	if err != nil {
		return err
	}
	if c.one {
		return c.respond(cmd, coll.FindOne(cmd.Context(), filter))
	}
	return c.respond(cmd, coll.Find(cmd.Context(), filter))
}

type updateCommand struct {
	target
}

func updateCmd(r *root) *cobra.Command {
	c := &updateCommand{target{root: r}}
	cmd := &cobra.Command{
		Use:   "update <collection> <filter> <update>",
		Short: "Apply update operators to documents",
		Long: `Apply an update expression such as {"$set": {"a": 1}} to the matching documents.
With --id the filter argument is omitted. Add "upsert": true to the update to
insert a document when nothing matches.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: c.RunE,
	}
	c.flags(cmd, "Update")
	return cmd
}

func (c *updateCommand) RunE(cmd *cobra.Command, args []string) error {
	if want := 3 - boolInt(c.id != ""); len(args) != want {
		return fmt.Errorf("accepts %d arg(s), received %d", want, len(args))
	}
	coll, err := c.collection(cmd, args[0])
	if err != nil {
		return err
	}
	d, err := readObject(args[len(args)-1], cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	expr, err := update.Parse(d)
	if err != nil {
		return err
	}

	if c.id != "" {
		return c.respond(cmd, coll.UpdateByID(cmd.Context(), c.id, expr))
	}
	filter, err := filterArg(cmd, args, 1)
	if err != nil {
		return err
	}
	if c.one {
		return c.respond(cmd, coll.UpdateOne(cmd.Context(), filter, expr))
	}
	return c.respond(cmd, coll.Update(cmd.Context(), filter, expr))
}

type replaceCommand struct {
	target
	upsert bool
}

func replaceCmd(r *root) *cobra.Command {
	c := &replaceCommand{target: target{root: r}}
	cmd := &cobra.Command{
		Use:   "replace <collection> <filter> <document>",
		Short: "Replace documents",
		Long:  `Replace the matching documents with a new document, keeping their _id. With --id the filter argument is omitted.`,
		Args:  cobra.RangeArgs(2, 3),
		RunE:  c.RunE,
	}
	c.flags(cmd, "Replace")
	cmd.Flags().BoolVar(&c.upsert, "upsert", false, "Insert the document when nothing matches")
	return cmd
}

func (c *replaceCommand) RunE(cmd *cobra.Command, args []string) error {
	if want := 3 - boolInt(c.id != ""); len(args) != want {
		return fmt.Errorf("accepts %d arg(s), received %d", want, len(args))
	}
	coll, err := c.collection(cmd, args[0])
	if err != nil {
		return err
	}
	doc, err := readObject(args[len(args)-1], cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("document: %w", err)
	}

	if c.id != "" {
		return c.respond(cmd, coll.ReplaceByID(cmd.Context(), c.id, doc, c.upsert))
	}
	filter, err := filterArg(cmd, args, 1)
	if err != nil {
		return err
	}
	if c.one {
		return c.respond(cmd, coll.ReplaceOne(cmd.Context(), filter, doc, c.upsert))
	}
	return c.respond(cmd, coll.Replace(cmd.Context(), filter, doc, c.upsert))
}

type removeCommand struct {
	target
}

func removeCmd(r *root) *cobra.Command {
	c := &removeCommand{target{root: r}}
	cmd := &cobra.Command{
		Use:     "remove <collection> <filter>",
		Aliases: []string{"rm"},
		Short:   "Remove documents",
		Long:    `Remove the documents matching a filter and print them. An empty filter is refused.`,
		Args:    cobra.RangeArgs(1, 2),
		RunE:    c.RunE,
	}
	c.flags(cmd, "Remove")
	return cmd
}

func (c *removeCommand) RunE(cmd *cobra.Command, args []string) error {
	coll, err := c.collection(cmd, args[0])
	if err != nil {
		return err
	}
	if c.id != "" {
		return c.respond(cmd, coll.RemoveByID(cmd.Context(), c.id))
	}
	filter, err := filterArg(cmd, args, 1)
	if err != nil {
		return err
	}
	if c.one {
		return c.respond(cmd, coll.RemoveOne(cmd.Context(), filter))
	}
	return c.respond(cmd, coll.Remove(cmd.Context(), filter))
}

type countCommand struct {
	*root
}

func countCmd(r *root) *cobra.Command {
	c := &countCommand{root: r}
	return &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the documents of a collection",
		Args:  cobra.ExactArgs(1),
		RunE:  c.RunE,
	}
}

func (c *countCommand) RunE(cmd *cobra.Command, args []string) error {
	coll, err := c.collection(cmd, args[0])
	if err != nil {
		return err
	}
	count := coll.Count()
	if count == persistence.CountUnknown {
		return fmt.Errorf("could not count documents in collection '%s'", coll.Name())
	}
	return writeOutput(c.out(cmd), c.output, map[string]any{
		"collection": coll.Name(),
		"count":      count,
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
