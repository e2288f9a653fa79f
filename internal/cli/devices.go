// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ik5/audstream/backend/portaudio"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := portaudio.Devices()
			if err != nil {
				return err
			}
			a.log.WithField("count", len(devices)).Debug("devices listed")

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tAPI\tIN\tOUT\tRATE\tDEFAULT")
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f\t%s\n",
					d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels,
					d.DefaultSampleRate, defaults(d))
			}
			return w.Flush()
		},
	}
}

func defaults(d portaudio.Device) string {
	switch {
	case d.DefaultInput && d.DefaultOutput:
		return "in,out"
	case d.DefaultInput:
		return "in"
	case d.DefaultOutput:
		return "out"
	default:
		return ""
	}
}
