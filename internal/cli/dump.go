package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/netrt"
	"github.com/hvm-core/hvmc/internal/port"
)

// ImageEntry is one reachable node of the §6 "Heap image" debug dump:
// `(tag, label, port0, port1)`.
type ImageEntry struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Label uint8  `json:"label"`
	Port0 string `json:"port0"`
	Port1 string `json:"port1"`
}

// HeapImage walks every node reachable from root and returns it in index
// order. A node's own tag/label are known from the port that referenced
// it (this encoding never stores an agent's tag on the node itself), so
// the walk carries the referencing port alongside each node index.
func HeapImage(n *netrt.Net, root port.Port) []ImageEntry {
	type pending struct {
		idx heap.Index
		p   port.Port
	}

	visited := map[heap.Index]bool{}
	var queue []pending
	enqueue := func(p port.Port) {
		p = n.Deref(p)
		if !p.IsPrincipal() || p.IsNilary() {
			return
		}
		idx := heap.Index(p.NodeIndex())
		if visited[idx] {
			return
		}
		visited[idx] = true
		queue = append(queue, pending{idx: idx, p: p})
	}

	enqueue(root)

	byIndex := map[heap.Index]ImageEntry{}
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		aux0 := n.Deref(n.Heap.Get(cur.idx, 0))
		aux1 := n.Deref(n.Heap.Get(cur.idx, 1))
		byIndex[cur.idx] = ImageEntry{
			Index: int(cur.idx),
			Tag:   cur.p.Tag().String(),
			Label: cur.p.Label(),
			Port0: aux0.String(),
			Port1: aux1.String(),
		}
		enqueue(aux0)
		enqueue(aux1)
	}

	entries := make([]ImageEntry, 0, len(byIndex))
	for _, e := range byIndex {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries
}

// NewDumpCommand builds `hvmc dump <file>`: reduce a program and print
// its final heap image.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	var entry string

	cmd := &cobra.Command{
		Use:           "dump <file>",
		Short:         "Reduce a net program and print its heap image",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bk, err := loadBook(args[0])
			if err != nil {
				return err
			}
			pool, _, err := runBook(rootOpts, bk, entry)
			if err != nil {
				return err
			}
			n := pool.Net(0)
			image := HeapImage(n, n.Deref(pool.Root()))

			if rootOpts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(image)
			}
			for _, e := range image {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: (%s, %d, %s, %s)\n", e.Index, e.Tag, e.Label, e.Port0, e.Port1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entry, "entry", "main", "definition to boot as the root program")
	return cmd
}
