package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/emberwatch/fire-danger-service/internal/nfdrs"
	"github.com/spf13/cobra"
)

// newCalcCmd computes a fire danger rating locally, without a server.
func newCalcCmd() *cobra.Command {
	var (
		tempF    float64
		humidity float64
		wind     float64
		precip   float64
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute a fire danger rating from explicit conditions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			obs, err := domain.NewWeatherObservation(tempF, humidity, wind, precip, time.Now().UTC(), "")
			if err != nil {
				return err
			}
			report, err := nfdrs.New().CalculateFireDanger(obs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().Float64Var(&tempF, "temp", 0, "air temperature in °F")
	cmd.Flags().Float64Var(&humidity, "humidity", 0, "relative humidity in percent")
	cmd.Flags().Float64Var(&wind, "wind", 0, "wind speed in mph")
	cmd.Flags().Float64Var(&precip, "precip", 0, "precipitation in inches")
	cmd.MarkFlagRequired("temp")     //nolint:errcheck
	cmd.MarkFlagRequired("humidity") //nolint:errcheck
	cmd.MarkFlagRequired("wind")     //nolint:errcheck

	return cmd
}
