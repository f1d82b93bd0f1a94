package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/objgate/internal/app"
	"github.com/roach88/objgate/internal/changes"
	"github.com/roach88/objgate/internal/engine"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
	"github.com/roach88/objgate/internal/store"
)

// ObjectOptions holds flags shared by the object commands.
type ObjectOptions struct {
	*RootOptions
	Data         string
	Changes      string
	ID           string
	Where        string
	View         []string
	Sort         []string
	Limit        int
	AllowMissing bool
}

// operation runs fn against a freshly built app and reports its result.
func (o *ObjectOptions) operation(cmd *cobra.Command, fn func(a *app.App, meta ir.Meta) (any, error)) error {
	f := o.formatter(cmd)
	a, meta, err := o.open(cmd)
	if err != nil {
		return f.Fail(err)
	}
	f.VerboseLog("drivers: %s; log drivers: %s",
		strings.Join(a.Store.Drivers(), ","), strings.Join(a.Store.LogDrivers(), ","))

	result, err := fn(a, meta)
	if closeErr := a.Close(); closeErr != nil && err == nil {
		err = WrapExitError(ExitCommandError, "closing drivers", closeErr)
	}
	if err != nil {
		return f.Fail(err)
	}
	return f.Success(result)
}

func (o *ObjectOptions) request(typ, id string, meta ir.Meta) engine.Request {
	return engine.Request{
		Type:         typ,
		ID:           id,
		View:         o.View,
		Sort:         queryir.ParseSort(o.Sort...),
		Limit:        o.Limit,
		AllowMissing: o.AllowMissing,
		Meta:         meta,
	}
}

// body parses --data and --changes into the request.
func (o *ObjectOptions) body(req *engine.Request) error {
	if o.Data != "" {
		obj, err := ir.UnmarshalObject([]byte(o.Data))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --data JSON", err)
		}
		req.Overlay = obj
	}
	if o.Changes != "" {
		cs, err := changes.DecodeChangeset([]byte(o.Changes))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --changes", err)
		}
		req.Changes = cs
	}
	return nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Create an object",
		Long: `Create an object from the type's defaults and an overlay.

Example:
  objgate create widget --data '{"name":"foo","price":3}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.operation(cmd, func(a *app.App, meta ir.Meta) (any, error) {
				req := opts.request(args[0], opts.ID, meta)
				if err := opts.body(&req); err != nil {
					return nil, err
				}
				return a.Engine.Create(cmd.Context(), req)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "overlay object as JSON")
	cmd.Flags().StringVar(&opts.Changes, "changes", "", "changeset as a JSON array of diffs")
	cmd.Flags().StringVar(&opts.ID, "id", "", "object id (generated when empty)")

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Fetch an object by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.operation(cmd, func(a *app.App, meta ir.Meta) (any, error) {
				return a.Engine.Get(cmd.Context(), opts.request(args[0], args[1], meta))
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.View, "view", nil, "fields to return (the id is always included)")
	cmd.Flags().BoolVar(&opts.AllowMissing, "allow-missing", false, "print null instead of failing when absent")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <type> <id>",
		Short: "Update an object, creating it if absent",
		Long: `Update an object with an overlay (--data) or an explicit changeset
(--changes). A missing object is created from the type's defaults first.

Examples:
  objgate update widget w1 --data '{"price":4}'
  objgate update widget w1 --changes '[{"kind":"E","path":["price"],"lhs":3,"rhs":4}]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.operation(cmd, func(a *app.App, meta ir.Meta) (any, error) {
				req := opts.request(args[0], args[1], meta)
				if err := opts.body(&req); err != nil {
					return nil, err
				}
				return a.Engine.Update(cmd.Context(), req)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "overlay object as JSON")
	cmd.Flags().StringVar(&opts.Changes, "changes", "", "changeset as a JSON array of diffs")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an object from every data driver",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.operation(cmd, func(a *app.App, meta ir.Meta) (any, error) {
				return a.Engine.Delete(cmd.Context(), opts.request(args[0], args[1], meta))
			})
		},
	}

	cmd.Flags().BoolVar(&opts.AllowMissing, "allow-missing", false, "succeed with false when absent")

	return cmd
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <type>",
		Short: "Query objects of a type",
		Long: `Query objects of a type with a structured filter.

The filter is a JSON object of field conditions. A plain value means
equality; {"$gt": 3} style operators compare ($eq $ne $lt $lte $gt $gte),
{"$exists": true} tests presence and {"$and": [...]} combines filters.

Example:
  objgate query widget --where '{"price":{"$gte":2}}' --sort -price --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.operation(cmd, func(a *app.App, meta ir.Meta) (any, error) {
				req := opts.request(args[0], "", meta)
				if opts.Where != "" {
					var where map[string]any
					if err := json.Unmarshal([]byte(opts.Where), &where); err != nil {
						return nil, WrapExitError(ExitCommandError, "invalid --where JSON", err)
					}
					req.Query = where
				}
				return a.Engine.Query(cmd.Context(), req)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "filter as JSON")
	addListFlags(cmd, opts)

	return cmd
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <type> <text>",
		Short: "Find objects whose string fields contain text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.operation(cmd, func(a *app.App, meta ir.Meta) (any, error) {
				req := opts.request(args[0], "", meta)
				req.Text = args[1]
				return a.Engine.Search(cmd.Context(), req)
			})
		},
	}

	addListFlags(cmd, opts)

	return cmd
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <type> [id]",
		Short: "Show audit log entries, newest first",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 2 {
				id = args[1]
			}
			return opts.operation(cmd, func(a *app.App, meta ir.Meta) (any, error) {
				return a.Engine.GetLog(cmd.Context(), opts.request(args[0], id, meta))
			})
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, fmt.Sprintf("maximum entries (0 uses the configured default, at most %d)", store.MaxLogLimit))

	return cmd
}

func addListFlags(cmd *cobra.Command, opts *ObjectOptions) {
	cmd.Flags().StringSliceVar(&opts.View, "view", nil, "fields to return (the id is always included)")
	cmd.Flags().StringSliceVar(&opts.Sort, "sort", nil, "sort keys, '-' prefix for descending")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (0 for no limit)")
}
