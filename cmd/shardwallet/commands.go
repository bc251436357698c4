package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "shardwallet",
		Short: "Fractional ownership of a treasury through a tree of shards",
		Long: `shardwallet divides a treasury between shards. The root shard owns
everything; split, merge and reforge reshape the tree while keeping the total
share at 100%, and claim pays each shard its share of every deposit seen so far.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.sync()
		},
	}
	a.bindFlags(root)

	root.AddCommand(
		newInitCmd(a),
		newShowCmd(a),
		newSplitCmd(a),
		newMergeCmd(a),
		newReforgeCmd(a),
		newClaimCmd(a),
		newReassignCmd(a),
		newAddressCmd(a),
		newKeygenCmd(a),
		newBenchCmd(a),
	)
	return root
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init <owner>",
		Short: "Create the root shard, owning 100%",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			id, err := s.wallet.Init(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "root shard %d -> %s\n", id, args[0])
			return nil
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [shard]",
		Short: "Print the shard tree, or one shard with its claim records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(false)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				st, err := s.wallet.Snapshot()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, st)
				}
				printState(out, st)
				return nil
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return showShard(out, s.wallet, id, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type shardView struct {
	*shardwallet.Shard
	Records   []*shardwallet.Record `json:"records"`
	Claimable map[string]uint64     `json:"claimable,omitempty"`
}

func showShard(out io.Writer, w *shardwallet.Wallet, id shardwallet.ID, asJSON bool) error {
	sh, err := w.Shard(id)
	if err != nil {
		return err
	}
	recs, err := w.Records(id)
	if err != nil {
		return err
	}
	view := shardView{Shard: sh, Records: recs}
	if sh.Active {
		st, err := w.Snapshot()
		if err != nil {
			return err
		}
		view.Claimable = make(map[string]uint64, len(st.Ledger))
		for _, e := range st.Ledger {
			owed, err := w.Claimable(id, e.Currency)
			if err != nil {
				return err
			}
			view.Claimable[e.Currency.String()] = owed
		}
	}
	if asJSON {
		return writeJSON(out, view)
	}

	fmt.Fprintf(out, "shard %d\n", sh.ID)
	fmt.Fprintf(out, "  recipient: %s\n", sh.Recipient)
	fmt.Fprintf(out, "  share:     %s of sources, weight %s\n", percent(sh.ShareMicros), percent(sh.Weight))
	fmt.Fprintf(out, "  active:    %t\n", sh.Active)
	if len(sh.Sources) > 0 {
		fmt.Fprintf(out, "  sources:   %s\n", joinIDs(sh.Sources))
	}
	for _, r := range recs {
		fmt.Fprintf(out, "  claimed %s: %d\n", r.Currency, r.Claimed)
	}
	currencies := make([]string, 0, len(view.Claimable))
	for c := range view.Claimable {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		fmt.Fprintf(out, "  claimable %s: %d\n", c, view.Claimable[c])
	}
	return nil
}

func printState(out io.Writer, st *shardwallet.State) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSHARE\tWEIGHT\tACTIVE\tSOURCES\tRECIPIENT")
	for _, sh := range st.Shards {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n",
			sh.ID, percent(sh.ShareMicros), percent(sh.Weight), sh.Active, joinIDs(sh.Sources), sh.Recipient)
	}
	_ = tw.Flush()

	if len(st.Ledger) == 0 {
		return
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CURRENCY\tRECEIVED\tLAST BALANCE")
	for _, e := range st.Ledger {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", e.Currency, e.CumulativeTotal, e.LastObservedBalance)
	}
	_ = tw.Flush()
}

func newSplitCmd(a *app) *cobra.Command {
	var children []string
	cmd := &cobra.Command{
		Use:   "split <shard> --child share:recipient ...",
		Short: "Replace a shard with children whose shares sum to 100%",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseID(args[0])
			if err != nil {
				return err
			}
			kids, err := parseChildren(children)
			if err != nil {
				return err
			}
			s, err := a.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			ids, err := s.wallet.Split(cmd.Context(), parent, kids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shard %d split into %s\n", parent, joinIDs(ids))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&children, "child", nil, "child as share_micros:recipient (repeatable)")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "merge <shard> <shard> ...",
		Short: "Combine shards into one paying the first shard's recipient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := a.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			var merged shardwallet.ID
			if to != "" {
				merged, err = s.wallet.MergeTo(cmd.Context(), ids, to)
			} else {
				merged, err = s.wallet.Merge(cmd.Context(), ids)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shards %s merged into %d\n", joinIDs(ids), merged)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient of the merged shard")
	return cmd
}

func newReforgeCmd(a *app) *cobra.Command {
	var children []string
	cmd := &cobra.Command{
		Use:   "reforge <shard> ... --child share:recipient ...",
		Short: "Replace shards with children splitting their combined weight",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parents, err := parseIDs(args)
			if err != nil {
				return err
			}
			kids, err := parseChildren(children)
			if err != nil {
				return err
			}
			s, err := a.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			ids, err := s.wallet.Reforge(cmd.Context(), parents, kids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shards %s reforged into %s\n", joinIDs(parents), joinIDs(ids))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&children, "child", nil, "child as share_micros:recipient (repeatable)")
	return cmd
}

func newClaimCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <shard> [native]",
		Short: "Pay a shard what it is owed in the native currency",
		Long:  `claim pays a shard its unclaimed share of native inflow to the shard's
recipient. Token currencies settle through token contracts, which the command
line does not configure, so only "native" is accepted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			currencies := []shardwallet.Currency{shardwallet.Native}
			if len(args) > 1 {
				currencies = currencies[:0]
				for _, c := range args[1:] {
					cur := shardwallet.ParseCurrency(c)
					if cur != shardwallet.Native {
						return fmt.Errorf("%w: %q", errTokenClaim, c)
					}
					currencies = append(currencies, cur)
				}
			}
			s, err := a.open(true)
			if err != nil {
				return err
			}
			defer s.Close()

			paid, err := s.wallet.Claim(cmd.Context(), id, currencies)
			for _, c := range currencies {
				if amount, ok := paid[c]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "shard %d claimed %d %s\n", id, amount, c)
				}
			}
			return err
		},
	}
}

func newReassignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reassign <shard> <recipient>",
		Short: "Change where a shard's claims are paid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.wallet.Reassign(cmd.Context(), id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shard %d -> %s\n", id, args[1])
			return nil
		},
	}
}

func newAddressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the treasury deposit address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := a.openTreasury()
			if err != nil {
				return err
			}
			if chain == nil {
				return errNoTreasury
			}
			fmt.Fprintln(cmd.OutOrStdout(), chain.Address())
			return nil
		},
	}
}

func parseID(s string) (shardwallet.ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid shard id %q", s)
	}
	return shardwallet.ID(v), nil
}

func parseIDs(args []string) ([]shardwallet.ID, error) {
	ids := make([]shardwallet.ID, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseChildren reads "share_micros:recipient" pairs. The recipient may
// itself contain colons.
func parseChildren(specs []string) ([]shardwallet.Child, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --child is required")
	}
	children := make([]shardwallet.Child, 0, len(specs))
	for _, spec := range specs {
		share, to, ok := strings.Cut(spec, ":")
		if !ok || to == "" {
			return nil, fmt.Errorf("invalid child %q: want share_micros:recipient", spec)
		}
		v, err := strconv.ParseUint(share, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid child %q: share: %w", spec, err)
		}
		children = append(children, shardwallet.Child{ShareMicros: v, Recipient: to})
	}
	return children, nil
}

func joinIDs(ids []shardwallet.ID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// percent renders a value over Denominator as a percentage.
func percent(micros uint64) string {
	whole := micros / 10_000
	frac := micros % 10_000
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%04d", whole, frac), "0") + "%"
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
