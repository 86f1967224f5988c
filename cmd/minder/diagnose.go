package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Report on tools, database health, and hardware",
	Args:  cobra.NoArgs,
	RunE:  runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	rep, err := eng.RunDiagnostics(context.Background())
	if err != nil {
		return err
	}
	fmt.Print(rep.Format())

	if !rep.Healthy() {
		return usageErrorf("environment needs attention, see report above")
	}
	return nil
}
