package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-engine/internal/icp"
	"github.com/sells-group/outreach-engine/internal/model"
)

var (
	discoverClientID   string
	discoverLocations  []string
	discoverIndustries []string
	discoverLimit      int
	discoverICPFile    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a lead discovery job",
	Long:  "Searches business directories for the given locations and industries, enriches results, extracts contacts, and scores each prospect against the ICP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := icp.LoadProfile(discoverICPFile)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.Store.Migrate(cmd.Context()); err != nil {
			return err
		}

		req := model.JobRequest{
			ClientID:   discoverClientID,
			Locations:  discoverLocations,
			Industries: discoverIndustries,
			Limit:      discoverLimit,
		}
		res, err := e.Coordinator.Run(cmd.Context(), req, profile, cfg.Discovery.MinICPScore)
		if err != nil {
			return err
		}

		valid := 0
		for _, p := range res.Prospects {
			if p.Status != model.ProspectStatusRejected {
				valid++
			}
		}
		fmt.Printf("Job %s %s: %d prospects (%d match the profile, %d contacts)\n",
			res.Job.ID, res.Job.Status, len(res.Prospects), valid, res.Job.Counters.ContactsFound)
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverClientID, "client", "", "client id owning the job")
	discoverCmd.Flags().StringSliceVar(&discoverLocations, "location", nil, "target location, repeatable (e.g. \"Austin, TX\")")
	discoverCmd.Flags().StringSliceVar(&discoverIndustries, "industry", nil, "target industry, repeatable")
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 0, "max businesses to discover (default from config)")
	discoverCmd.Flags().StringVar(&discoverICPFile, "icp", "icp.yaml", "path to the ICP profile file")
	_ = discoverCmd.MarkFlagRequired("client")
	_ = discoverCmd.MarkFlagRequired("location")
	_ = discoverCmd.MarkFlagRequired("industry")
	rootCmd.AddCommand(discoverCmd)
}
