package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khaledhikmat/fr-attendance/mode"
)

var preview bool

var camerasCmd = &cobra.Command{
	Use:   "cameras [camera ids...]",
	Short: "List the cameras known to the camera source",
	Long: `List the cameras known to the camera source.

With --preview, keep polling plain snapshots of the given cameras (all listed
cameras when none are given) every preview interval, without recognition.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if preview {
			svcs, cleanup, err := newServices(cmd.Context(), cfgSvc)
			if err != nil {
				return err
			}
			defer cleanup()

			return mode.Preview(args, mode.PreviewConsole(os.Stdout))(cmd.Context(), svcs)
		}

		cameraSvc, err := newCameraService(cfgSvc)
		if err != nil {
			return err
		}

		ids, err := cameraSvc.ListCameras(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No cameras found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "#\tCAMERA ID")
		fmt.Fprintln(w, "-\t---------")
		for i, id := range ids {
			fmt.Fprintf(w, "%d\t%s\n", i+1, id)
		}
		return w.Flush()
	},
}

func init() {
	camerasCmd.Flags().BoolVar(&preview, "preview", false, "poll snapshots without recognition until interrupted")
	rootCmd.AddCommand(camerasCmd)
}
