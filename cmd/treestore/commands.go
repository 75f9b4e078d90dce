package main

import (
	"fmt"
	"io"
	log "log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/lock"
	"github.com/SharedCode/treestore/restapi"
	"github.com/SharedCode/treestore/snapshot"
)

func initCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "create the tables and the Edit and Live roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app) error {
				if err := a.db.Migrate(cmd.Context()); err != nil {
					return err
				}
				return a.trees.EnsureRoots(cmd.Context(), nil, treestore.System())
			})
		},
	}
}

func serveCommand(load loader) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the REST API and sweep expired locks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, load, func(a *app) error {
				if err := a.db.Migrate(ctx); err != nil {
					return err
				}
				if err := a.trees.EnsureRoots(ctx, nil, treestore.System()); err != nil {
					return err
				}
				if a.options.SweepInterval > 0 {
					sweeper := lock.NewSweeper(a.locks, a.options.SweepInterval)
					sweeper.Start(ctx)
					defer sweeper.Stop()
				}
				if listen == "" {
					listen = a.options.ListenAddress
				}
				s := restapi.New(restapi.Config{Trees: a.trees, Locks: a.locks})
				return s.Run(ctx, listen)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides listen_address")
	return cmd
}

func checkCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "verify the nested set invariants of both trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app) error {
				if err := a.trees.Verify(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "edit and live trees are consistent")
				return nil
			})
		},
	}
}

func sweepCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "delete expired lock rows once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app) error {
				n, err := a.locks.SweepExpired(cmd.Context(), nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s expired locks\n", humanize.Comma(n))
				return nil
			})
		},
	}
}

func activateAllCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "activate-all",
		Short: "publish every dirty Edit node to the Live tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app) error {
				return a.trees.ActivateAll(cmd.Context(), nil, treestore.System())
			})
		},
	}
}

func exportCommand(load loader) *cobra.Command {
	var mode, dir string
	var toS3 bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "write a JSON snapshot of a tree to a directory or to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := treestore.ParseTreeMode(mode)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), load, func(a *app) error {
				var sink snapshot.Sink = snapshot.FileSink{Dir: dir}
				if toS3 {
					if a.options.S3 == nil {
						return fmt.Errorf("export to s3 requires the s3 options section")
					}
					s3sink, err := snapshot.NewS3Sink(*a.options.S3)
					if err != nil {
						return err
					}
					sink = s3sink
				}
				r, err := snapshot.Export(cmd.Context(), a.trees, m, sink)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s nodes, %s\n", r.Location, humanize.Comma(int64(r.Nodes)), humanize.Bytes(uint64(r.Bytes)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "live", "tree to export, edit or live")
	cmd.Flags().StringVar(&dir, "dir", ".", "target directory of file exports")
	cmd.Flags().BoolVar(&toS3, "s3", false, "upload to the configured S3 bucket")
	return cmd
}

func treeCommand(load loader) *cobra.Command {
	var mode, path string
	var id int64
	var depth int
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "print a subtree",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := treestore.ParseTreeMode(mode)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), load, func(a *app) error {
				ctx := cmd.Context()
				if path != "" {
					if id, err = a.trees.GetIDByPath(ctx, nil, m, treestore.RootNodeID, path); err != nil {
						return err
					}
				}
				n, err := a.trees.GetTree(ctx, nil, m, id, depth)
				if err != nil {
					return err
				}
				log.Debug("tree read", "mode", m, "id", id, "total", n.TotalChildCount)
				printTree(cmd.OutOrStdout(), n, 0)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "edit", "tree to read, edit or live")
	cmd.Flags().Int64Var(&id, "id", treestore.RootNodeID, "id of the subtree root")
	cmd.Flags().StringVar(&path, "path", "", "slash separated path of the subtree root, overrides --id")
	cmd.Flags().IntVar(&depth, "depth", 2, "levels below the subtree root, 0 for all")
	return cmd
}

func printTree(w io.Writer, n *treestore.TreeNode, indent int) {
	dirty := ""
	if n.Dirty {
		dirty = " *"
	}
	fmt.Fprintf(w, "%s%s [%d] %s children, %s descendants%s\n", strings.Repeat("  ", indent), n.Name, n.ID,
		humanize.Comma(int64(n.DirectChildCount)), humanize.Comma(int64(n.TotalChildCount)), dirty)
	for _, c := range n.Children {
		printTree(w, c, indent+1)
	}
}
