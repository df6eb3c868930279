package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/khaledhikmat/fr-attendance/mode"
)

var cameraID string

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Run live recognition for one camera and print who is seen",
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, cleanup, err := newServices(cmd.Context(), cfgSvc)
		if err != nil {
			return err
		}
		defer cleanup()

		return mode.Live(cameraID, mode.Console(os.Stdout))(cmd.Context(), svcs)
	},
}

func init() {
	recognizeCmd.Flags().StringVar(&cameraID, "camera", "", "camera id to poll (see the cameras command)")
	recognizeCmd.MarkFlagRequired("camera")
	rootCmd.AddCommand(recognizeCmd)
}
