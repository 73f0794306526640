package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/checkin-engine/catalog"
	"github.com/warp/checkin-engine/checkin"
)

// withApp opens the app for one page command and renders afterwards, so
// rewards earned by the action are granted and shown.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, out io.Writer) error) error {
	a, err := newApp(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if err := fn(ctx, a, out); err != nil {
		return err
	}

	view, err := a.engine.Render(ctx)
	if err != nil {
		return err
	}
	for _, n := range view.Notices {
		fmt.Fprintln(out, n.Text)
	}
	return nil
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show level, tasks, badges and recent check-ins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.engine.Render(cmd.Context())
			if err != nil {
				return err
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func newViewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "view <shop-id>",
		Short: "Record a shop view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app, out io.Writer) error {
				shop, err := a.catalog.Get(args[0])
				if err != nil {
					return err
				}
				if err := a.layer.ViewShop(ctx, shop.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "Viewed %s\n", shop.Name)
				return nil
			})
		},
	}
}

func newFavoriteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <shop-id>",
		Short: "Toggle a shop in favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app, out io.Writer) error {
				on, err := a.layer.ToggleFavorite(ctx, args[0])
				if err != nil {
					return err
				}
				if on {
					fmt.Fprintf(out, "Added %s to favorites\n", args[0])
				} else {
					fmt.Fprintf(out, "Removed %s from favorites\n", args[0])
				}
				return nil
			})
		},
	}
}

func newCheckinCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "checkin <shop-id>",
		Short: "Check in at a shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app, out io.Writer) error {
				ok, err := a.layer.CheckIn(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Already checked in at this shop today")
					return nil
				}
				fmt.Fprintf(out, "Checked in at %s, +%d pts\n", args[0], a.rules.CheckinPoints)
				return nil
			})
		},
	}
}

func newShopsCmd(c *cli) *cobra.Command {
	var (
		nearby bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "shops [query]",
		Short: "Search shops, or list them by distance with --nearby",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()

			if nearby {
				from, err := a.locator.Locate(cmd.Context())
				if err != nil {
					fmt.Fprintln(out, "Location is not supported; showing shops in catalog order")
					printRanked(out, a.catalog.Nearby(nil, limit))
					return nil
				}
				printRanked(out, a.catalog.Nearby(&from, limit))
				return nil
			}

			var q string
			if len(args) == 1 {
				q = args[0]
			}
			shops := a.catalog.Search(q, limit)
			if len(shops) == 0 {
				fmt.Fprintln(out, "No shops found")
				return nil
			}
			for _, s := range shops {
				fmt.Fprintf(out, "%-20s %s (%.1f★)\n", s.ID, s.Name, s.Rating)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&nearby, "nearby", false, "Rank by distance from the configured location")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum shops to list (default 12, or 6 with --nearby)")
	return cmd
}

func printRanked(out io.Writer, shops []catalog.Ranked) {
	for _, s := range shops {
		if s.DistanceKm != nil {
			fmt.Fprintf(out, "%-20s %s  %.2f km\n", s.ID, s.Name, *s.DistanceKm)
		} else {
			fmt.Fprintf(out, "%-20s %s\n", s.ID, s.Name)
		}
	}
}

func printView(out io.Writer, v checkin.View) {
	fmt.Fprintf(out, "%s\n", v.Today)
	fmt.Fprintf(out, "Level %d  %d pts  (%d to next)\n", v.Level.Level, v.Level.Points, v.Level.ToNext)

	fmt.Fprintf(out, "\nDaily tasks %d/%d\n", v.Daily.DoneCount, len(v.Daily.Tasks))
	for _, t := range v.Daily.Tasks {
		fmt.Fprintf(out, "  %s %s  %s\n", mark(t.Done), t.Title, t.Reward)
	}

	fmt.Fprintln(out, "\nLong-term tasks")
	for _, t := range v.LongTerm {
		fmt.Fprintf(out, "  %s %s  %d/%d  %s\n", mark(t.Done), t.Title, t.Current, t.Goal, t.Reward)
	}

	if len(v.Badges) > 0 {
		fmt.Fprintf(out, "\nBadges: %s\n", strings.Join(v.Badges, "  "))
	}

	if len(v.Log) > 0 {
		fmt.Fprintln(out, "\nRecent check-ins")
		for _, e := range v.Log {
			fmt.Fprintf(out, "  %s  %s\n", e.Date, e.Note)
		}
	}

	for _, n := range v.Notices {
		fmt.Fprintf(out, "\n%s\n", n.Text)
	}
}

func mark(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}
