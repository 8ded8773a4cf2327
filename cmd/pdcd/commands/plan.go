package commands

import (
	"fmt"
	"strconv"

	"github.com/hpc-io/pdc-sub004/internal/cli/output"
	"github.com/hpc-io/pdc-sub004/pkg/region"
	"github.com/hpc-io/pdc-sub004/pkg/store"
	"github.com/spf13/cobra"
)

var (
	planDims   []uint
	planOffset []uint
	planSize   []uint
	planUnit   int
	planOutput string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the file I/O a region transfer would issue",
	Long: `Show how a region of an object is laid out in the object's data file:
the I/O strategy chosen and every positional read or write it issues.

Examples:
  # Row 4 of a 10x10 byte object: one contiguous extent
  pdcd plan --dims 10,10 --offset 4,0 --size 1,10

  # A column block of a 3D float64 object
  pdcd plan --dims 4,8,16 --offset 0,2,4 --size 4,2,8 --unit 8

  # Machine-readable output
  pdcd plan --dims 100 --offset 10 --size 20 -o json`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().UintSliceVar(&planDims, "dims", nil, "Object dimensions (comma separated)")
	planCmd.Flags().UintSliceVar(&planOffset, "offset", nil, "Region offset per axis")
	planCmd.Flags().UintSliceVar(&planSize, "size", nil, "Region size per axis")
	planCmd.Flags().IntVar(&planUnit, "unit", 1, "Element size in bytes")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "table", "Output format (table|json|yaml)")
	_ = planCmd.MarkFlagRequired("dims")
	_ = planCmd.MarkFlagRequired("offset")
	_ = planCmd.MarkFlagRequired("size")
}

// planView is the printable form of a store.Plan.
type planView struct {
	Region   string         `json:"region" yaml:"region"`
	Strategy string         `json:"strategy" yaml:"strategy"`
	Bytes    int64          `json:"bytes" yaml:"bytes"`
	Extents  []store.Extent `json:"extents" yaml:"extents"`
}

// Headers implements output.TableRenderer.
func (v planView) Headers() []string {
	return []string{"#", "File Offset", "Buf Offset", "Length"}
}

// Rows implements output.TableRenderer.
func (v planView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Extents))
	for i, e := range v.Extents {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.FormatInt(e.FileOffset, 10),
			strconv.Itoa(e.BufOffset),
			strconv.Itoa(e.Length),
		})
	}
	return rows
}

func runPlan(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(planOutput)
	if err != nil {
		return err
	}

	r, err := region.New(toUint64s(planOffset), toUint64s(planSize))
	if err != nil {
		return err
	}
	plan, err := store.PlanIO(r, toUint64s(planDims), planUnit)
	if err != nil {
		return err
	}

	view := planView{
		Region:   r.String(),
		Strategy: plan.Strategy.String(),
		Bytes:    plan.Bytes(),
		Extents:  plan.Extents,
	}

	out := cmd.OutOrStdout()
	if format != output.FormatTable {
		return output.NewPrinter(out, format).Print(view)
	}

	if err := output.SimpleTable(out, [][2]string{
		{"Region", view.Region},
		{"Strategy", view.Strategy},
		{"Extents", strconv.Itoa(len(view.Extents))},
		{"Bytes", strconv.FormatInt(view.Bytes, 10)},
	}); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return output.PrintTable(out, view)
}

func toUint64s(v []uint) []uint64 {
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = uint64(x)
	}
	return out
}
