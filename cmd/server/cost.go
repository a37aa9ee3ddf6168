package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langchou/carshare/internal/pricing"
)

var (
	costDistance   float64
	costEfficiency float64
	costFuelType   string
	costPricesFile string
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Compute the fuel cost of a trip",
	RunE: func(cmd *cobra.Command, args []string) error {
		if costFuelType != "" && !pricing.IsValidFuelType(costFuelType) {
			return fmt.Errorf("unknown fuel type %q", costFuelType)
		}
		calc, err := loadCalculator(costPricesFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Distancia:   %.1f km\n", costDistance)
		fmt.Fprintf(out, "Rendimiento: %s\n", pricing.FormatEfficiency(costEfficiency))
		fmt.Fprintf(out, "Precio:      %s\n", pricing.FormatPricePerLiter(calc.PricePerLiter(costFuelType)))
		fmt.Fprintf(out, "Consumo:     %.2f l\n", calc.FuelConsumption(costDistance, costEfficiency))
		fmt.Fprintf(out, "Costo:       %s\n", pricing.FormatCurrency(calc.Cost(costDistance, costEfficiency, costFuelType)))
		return nil
	},
}

func init() {
	costCmd.Flags().Float64Var(&costDistance, "distance", 0, "trip distance in km")
	costCmd.Flags().Float64Var(&costEfficiency, "efficiency", pricing.DefaultFuelEfficiency, "fuel efficiency in km/l")
	costCmd.Flags().StringVar(&costFuelType, "fuel", pricing.DefaultFuelType, "fuel type")
	costCmd.Flags().StringVar(&costPricesFile, "prices", "", "YAML fuel price file")
	_ = costCmd.MarkFlagRequired("distance")
	rootCmd.AddCommand(costCmd)
}
