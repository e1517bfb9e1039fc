package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notnil/twai"
)

var (
	bitratesOpts = struct {
		brpMax   int
		revision int
	}{}

	bitratesCmd = &cobra.Command{
		Use:   "bitrates",
		Short: "List supported bit rates and their timing profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := twai.Capabilities{BRPMax: bitratesOpts.brpMax, Revision: bitratesOpts.revision}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%9s %6s %6s %6s %4s\n", "bitrate", "brp", "tseg1", "tseg2", "sjw")
			for _, r := range twai.SupportedBitrates(caps) {
				p, _ := twai.ResolveTiming(r, caps)
				fmt.Fprintf(out, "%9d %6d %6d %6d %4d\n", p.Bitrate, p.BRP, p.TSeg1, p.TSeg2, p.SJW)
			}
			return nil
		},
	}
)

func init() {
	def := twai.DefaultCapabilities()
	bitratesCmd.Flags().IntVar(&bitratesOpts.brpMax, "brp-max", def.BRPMax, "largest baud rate prescaler of the silicon")
	bitratesCmd.Flags().IntVar(&bitratesOpts.revision, "revision", def.Revision, "silicon revision")
}
