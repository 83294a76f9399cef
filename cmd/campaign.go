package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-engine/internal/analytics"
	"github.com/sells-group/outreach-engine/internal/campaign"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage outreach campaigns",
}

// campaignSpec is the YAML shape accepted by `campaign create`. Prospects
// come either from an explicit id list or from a discovery job filtered
// by minimum ICP score.
type campaignSpec struct {
	ClientID    string   `yaml:"client_id"`
	Name        string   `yaml:"name"`
	ICPID       string   `yaml:"icp_id"`
	JobID       string   `yaml:"job_id"`
	MinScore    float64  `yaml:"min_score"`
	ProspectIDs []string `yaml:"prospect_ids"`
	Templates   []struct {
		Sequence  int    `yaml:"sequence"`
		Subject   string `yaml:"subject"`
		Body      string `yaml:"body"`
		DelayDays int    `yaml:"delay_days"`
	} `yaml:"templates"`
	Settings struct {
		DailySendLimit  int    `yaml:"daily_send_limit"`
		SendWindowStart int    `yaml:"send_window_start"`
		SendWindowEnd   int    `yaml:"send_window_end"`
		Timezone        string `yaml:"timezone"`
		SkipWeekends    bool   `yaml:"skip_weekends"`
		FromAddress     string `yaml:"from_address"`
		AccountID       string `yaml:"account_id"`
	} `yaml:"settings"`
}

var campaignFile string

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign from a YAML definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(campaignFile)
		if err != nil {
			return eris.Wrapf(err, "read campaign file %s", campaignFile)
		}
		var spec campaignSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return eris.Wrapf(err, "parse campaign file %s", campaignFile)
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ids := spec.ProspectIDs
		if len(ids) == 0 && spec.JobID != "" {
			prospects, err := e.Store.ListProspects(cmd.Context(), store.ProspectFilter{
				JobID:    spec.JobID,
				MinScore: spec.MinScore,
			})
			if err != nil {
				return err
			}
			for _, p := range prospects {
				if p.Status != model.ProspectStatusRejected {
					ids = append(ids, p.ID)
				}
			}
		}
		if len(ids) == 0 {
			return eris.New("campaign has no prospects")
		}

		c := &model.Campaign{
			ClientID:    spec.ClientID,
			ICPID:       spec.ICPID,
			Name:        spec.Name,
			Status:      model.CampaignStatusDraft,
			ProspectIDs: ids,
			Settings: model.CampaignSettings{
				DailySendLimit:  spec.Settings.DailySendLimit,
				SendWindowStart: spec.Settings.SendWindowStart,
				SendWindowEnd:   spec.Settings.SendWindowEnd,
				Timezone:        spec.Settings.Timezone,
				SkipWeekends:    spec.Settings.SkipWeekends,
				FromAddress:     spec.Settings.FromAddress,
				AccountID:       spec.Settings.AccountID,
			},
		}
		for _, t := range spec.Templates {
			c.Templates = append(c.Templates, model.EmailTemplate{
				Sequence:  t.Sequence,
				Subject:   t.Subject,
				Body:      t.Body,
				DelayDays: t.DelayDays,
			})
		}

		if err := e.Store.CreateCampaign(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Printf("campaign %s created with %d prospects\n", c.ID, len(ids))
		for _, tpl := range c.Templates {
			printQualityReport(tpl)
		}
		return nil
	},
}

func printQualityReport(tpl model.EmailTemplate) {
	report := campaign.CheckQuality(tpl.Subject, tpl.Body)
	fmt.Printf("template %d quality: %d/100 (%s)\n", tpl.Sequence, report.Score, report.Grade)
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if report.Score < 70 {
		for _, r := range report.Recommendations {
			fmt.Printf("  fix: %s\n", r)
		}
	}
}

var campaignActivateCmd = &cobra.Command{
	Use:   "activate <campaign-id>",
	Short: "Activate a draft or paused campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCampaignStatus(cmd, args[0], model.CampaignStatusActive)
	},
}

var campaignPauseCmd = &cobra.Command{
	Use:   "pause <campaign-id>",
	Short: "Pause an active campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCampaignStatus(cmd, args[0], model.CampaignStatusPaused)
	},
}

func setCampaignStatus(cmd *cobra.Command, id string, status model.CampaignStatus) error {
	e, err := initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := e.Store.GetCampaign(cmd.Context(), id)
	if err != nil {
		return err
	}
	switch status {
	case model.CampaignStatusActive:
		if c.Status == model.CampaignStatusDraft && !c.CanActivate() {
			return eris.New("campaign needs at least one template and one prospect")
		}
		if c.Status == model.CampaignStatusCompleted {
			return eris.New("campaign is already completed")
		}
	case model.CampaignStatusPaused:
		if c.Status != model.CampaignStatusActive {
			return eris.Errorf("cannot pause a %s campaign", c.Status)
		}
	}
	c.Status = status
	if err := e.Store.UpdateCampaign(cmd.Context(), c); err != nil {
		return err
	}
	fmt.Printf("campaign %s is now %s\n", c.ID, c.Status)
	return nil
}

var campaignSendCmd = &cobra.Command{
	Use:   "send <campaign-id>",
	Short: "Run the send loop for a campaign",
	Long:  "Sends to every prospect not yet emailed, stopping at the daily limit or the end of the send window. Safe to re-run; it resumes where it stopped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.Sender.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("sent %d, failed %d, skipped %d", res.Sent, res.Failed, res.Skipped)
		if res.StopReason != "" {
			fmt.Printf(" (%s)", res.StopReason)
		}
		fmt.Println()
		return nil
	},
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show campaign progress and engagement counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		c, err := e.Store.GetCampaign(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sentSet, err := e.Store.SentProspectIDs(cmd.Context(), c.ID)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n", c.Name, c.Status)
		fmt.Printf("  prospects:  %d (%d emailed)\n", len(c.ProspectIDs), len(sentSet))
		fmt.Printf("  sent:       %d (%d failed, %d bounced)\n", c.Stats.EmailsSent, c.Stats.EmailsFailed, c.Stats.EmailsBounced)
		fmt.Printf("  opens:      %d (%d unique)\n", c.Stats.EmailsOpened, c.Stats.UniqueOpens)
		fmt.Printf("  clicks:     %d (%d unique)\n", c.Stats.EmailsClicked, c.Stats.UniqueClicks)
		fmt.Printf("  replies:    %d\n", c.Stats.EmailsReplied)
		return nil
	},
}

var campaignReportCmd = &cobra.Command{
	Use:   "report <campaign-id>",
	Short: "Show derived rates, funnel, and benchmark comparison",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		c, err := e.Store.GetCampaign(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		rates := analytics.ComputeRates(c.Stats)
		fmt.Printf("%s (%s)\n", c.Name, c.Status)
		fmt.Printf("  delivery %.1f%%  bounce %.1f%%  open %.1f%%  click %.1f%%  reply %.1f%%\n",
			rates.DeliveryRate*100, rates.BounceRate*100, rates.OpenRate*100, rates.ClickRate*100, rates.ReplyRate*100)

		fmt.Println("funnel:")
		for _, s := range analytics.Funnel(c) {
			fmt.Printf("  %-12s %6d  %5.1f%%\n", s.Name, s.Count, s.Percentage)
		}

		fmt.Println("benchmarks:")
		for _, b := range analytics.CompareToBenchmarks(c.Stats) {
			fmt.Printf("  %-12s %5.2f%%  %s (industry avg %.2f%%)\n", b.Metric, b.Value, b.Rating, b.IndustryAverage)
		}
		return nil
	},
}

func init() {
	campaignCreateCmd.Flags().StringVar(&campaignFile, "file", "campaign.yaml", "path to the campaign definition")
	campaignCmd.AddCommand(campaignCreateCmd, campaignActivateCmd, campaignPauseCmd, campaignSendCmd, campaignStatusCmd, campaignReportCmd)
	rootCmd.AddCommand(campaignCmd)
}
