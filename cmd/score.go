package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-engine/internal/icp"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

var (
	scoreJobID   string
	scoreICPFile string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Re-score a job's prospects against an ICP profile",
	Long:  "Loads every prospect from a discovery job, recomputes its ICP fit score, and writes the updated scores back. Useful after editing the profile.",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := icp.LoadProfile(scoreICPFile)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		prospects, err := e.Store.ListProspects(cmd.Context(), store.ProspectFilter{JobID: scoreJobID})
		if err != nil {
			return err
		}
		if len(prospects) == 0 {
			fmt.Printf("no prospects for job %s\n", scoreJobID)
			return nil
		}

		scorer := icp.NewScorer(profile, cfg.Discovery.MinICPScore)
		valid := 0
		for i := range prospects {
			res := scorer.Score(prospects[i])
			prospects[i].ICPMatchScore = res.Score
			prospects[i].ValidationIssues = res.Issues
			if res.Valid {
				valid++
				if prospects[i].Status == model.ProspectStatusRejected {
					prospects[i].Status = model.ProspectStatusResearched
				}
			} else {
				prospects[i].Status = model.ProspectStatusRejected
			}
		}
		if err := e.Store.SaveProspects(cmd.Context(), prospects); err != nil {
			return err
		}

		fmt.Printf("scored %d prospects, %d match the profile\n", len(prospects), valid)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreJobID, "job", "", "discovery job id")
	scoreCmd.Flags().StringVar(&scoreICPFile, "icp", "icp.yaml", "path to the ICP profile file")
	_ = scoreCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(scoreCmd)
}
