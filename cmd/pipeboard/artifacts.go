package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/npratt/pipeboard/internal/services"
)

func newPlanCmd(a *app) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate and inspect delivery plans",
	}

	latestCmd := &cobra.Command{
		Use:   "latest [project-id]",
		Short: "Show the newest plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			p, err := a.openSession().LatestPlan(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, p)
			}
			if p == nil {
				_, _ = fmt.Fprintln(a.stdout, "No plan yet")
				return nil
			}
			printPlan(a.stdout, p)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a specific plan of the selected project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(nil)
			if err != nil {
				return err
			}
			p, err := a.openSession().Plan(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, p)
			}
			printPlan(a.stdout, p)
			return nil
		},
	}

	generateCmd := &cobra.Command{
		Use:   "generate [project-id]",
		Short: "Generate a new plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			source, _ := flags.GetString(FlagSource)
			in := services.PlanGenerateRequest{Source: services.PlanSource(strings.ToLower(source))}
			switch in.Source {
			case services.PlanFromRequirements, services.PlanFromChecklist, services.PlanFromHybrid:
			default:
				return fmt.Errorf("unknown plan source %q (want requirements, checklist, or hybrid)", source)
			}
			in.UseCode, _ = flags.GetBool(FlagUseCode)
			in.IncludeChecklist, _ = flags.GetBool(FlagIncludeChecklist)
			deadline, _ := flags.GetInt(FlagDeadlineDays)
			team, _ := flags.GetInt(FlagTeamSize)
			if deadline > 0 || team > 0 {
				in.Constraints = &services.PlanConstraints{DeadlineDays: deadline, TeamSize: team}
			}

			res, err := a.openSession().GeneratePlan(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, res)
			}
			if res.Queued() {
				_, _ = fmt.Fprintf(a.stdout, "Plan generation queued (task %s)\n", res.TaskID)
				return nil
			}
			_, _ = fmt.Fprintf(a.stdout, "Plan v%d generated with %d phases (%s)\n", res.Version, res.TotalPhases, res.ID)
			return nil
		},
	}
	generateCmd.Flags().String(FlagSource, string(services.PlanFromRequirements), "Plan from requirements, checklist, or hybrid")
	generateCmd.Flags().Bool(FlagUseCode, false, "Let the planner read the codebase")
	generateCmd.Flags().Bool(FlagIncludeChecklist, false, "Include the code checklist")
	generateCmd.Flags().Int(FlagDeadlineDays, 0, "Deadline in days (0 = none)")
	generateCmd.Flags().Int(FlagTeamSize, 0, "Team size (0 = unspecified)")

	planCmd.AddCommand(latestCmd, showCmd, generateCmd)
	return planCmd
}

func printPlan(w io.Writer, p *services.Plan) {
	printField(w, "Plan", fmt.Sprintf("v%d (%s)", p.Version, p.ID))
	printField(w, "Status", orDash(p.Status))
	printField(w, "Source", string(p.Source))
	printField(w, "Duration", fmt.Sprintf("%.1f days", p.TotalDurationDays))
	printField(w, "Coverage", fmt.Sprintf("%.0f%%", p.CoveragePercentage))
	printField(w, "Risk score", fmt.Sprintf("%.1f", p.RiskScore))
	printField(w, "Created", ago(p.CreatedAt.Time))

	_, _ = fmt.Fprintf(w, "\nPhases (%d):\n", len(p.Phases))
	for _, ph := range p.Phases {
		_, _ = fmt.Fprintf(w, "  %2d. %s  [%.1fd, risk %s]\n", ph.Sequence, ph.Title, ph.EstimatedDays, orDash(string(ph.RiskLevel)))
		if ph.Objective != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", ph.Objective)
		}
		if len(ph.Dependencies) > 0 {
			_, _ = fmt.Fprintf(w, "      after %s\n", strings.Join(ph.Dependencies, ", "))
		}
	}
}

func newPromptsCmd(a *app) *cobra.Command {
	promptsCmd := &cobra.Command{
		Use:   "prompts",
		Short: "Generate, inspect, and download prompt bundles",
	}

	latestCmd := &cobra.Command{
		Use:   "latest [project-id]",
		Short: "Show the newest prompt bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			b, err := a.openSession().LatestPrompts(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, b)
			}
			if b == nil {
				_, _ = fmt.Fprintln(a.stdout, "No prompt bundle yet")
				return nil
			}

			full, _ := cmd.Flags().GetBool(FlagFull)
			w := a.stdout
			printField(w, "Bundle", fmt.Sprintf("v%d (%s)", b.Version, b.ID))
			printField(w, "Plan", orDash(b.PlanID))
			printField(w, "Include code", fmt.Sprintf("%t", b.IncludeCode))
			printField(w, "Prompts", fmt.Sprintf("%d", b.TotalPrompts))
			printField(w, "Created", ago(b.CreatedAt.Time))
			_, _ = fmt.Fprintln(w)
			for _, p := range b.Prompts {
				_, _ = fmt.Fprintf(w, "%2d. %s\n", p.Sequence, p.Title)
				if full {
					_, _ = fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(p.ContentMD))
				}
			}
			return nil
		},
	}
	latestCmd.Flags().Bool(FlagFull, false, "Print every prompt's markdown")

	generateCmd := &cobra.Command{
		Use:   "generate [project-id]",
		Short: "Generate a prompt bundle from the latest plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			var in services.PromptGenerateRequest
			in.IncludeCode, _ = cmd.Flags().GetBool(FlagIncludeCode)
			in.PlanID, _ = cmd.Flags().GetString(FlagPlanID)

			res, err := a.openSession().GeneratePrompts(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, res)
			}
			if res.Queued() {
				_, _ = fmt.Fprintf(a.stdout, "Prompt generation queued (task %s)\n", res.TaskID)
				return nil
			}
			_, _ = fmt.Fprintf(a.stdout, "Bundle v%d generated with %d prompts (%s)\n", res.Version, res.TotalPrompts, res.ID)
			return nil
		},
	}
	generateCmd.Flags().Bool(FlagIncludeCode, true, "Include code context in the prompts")
	generateCmd.Flags().String(FlagPlanID, "", "Plan to generate from (default: latest)")

	downloadCmd := &cobra.Command{
		Use:   "download [project-id]",
		Short: "Download a prompt bundle as a zip archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			bundleID, _ := cmd.Flags().GetString(FlagBundle)
			output, _ := cmd.Flags().GetString(FlagOutput)

			s := a.openSession()
			if bundleID == "" {
				b, err := s.LatestPrompts(cmd.Context(), id)
				if err != nil {
					return err
				}
				if b == nil {
					return fmt.Errorf("project %s has no prompt bundle", id)
				}
				bundleID = b.ID
				if output == "" {
					output = fmt.Sprintf("prompts-%s-v%d.zip", id, b.Version)
				}
			}
			if output == "" {
				output = bundleID + ".zip"
			}

			data, err := s.DownloadBundle(cmd.Context(), id, bundleID)
			if err != nil {
				return err
			}
			wrote, err := writeOutput(a.stdout, output, data)
			if err != nil {
				return err
			}
			if wrote {
				_, _ = fmt.Fprintf(a.stderr, "Saved %s (%s)\n", output, humanize.IBytes(uint64(len(data))))
			}
			return nil
		},
	}
	downloadCmd.Flags().String(FlagBundle, "", "Bundle id (default: latest)")
	downloadCmd.Flags().StringP(FlagOutput, "o", "", "Output file, or - for stdout")

	promptsCmd.AddCommand(latestCmd, generateCmd, downloadCmd)
	return promptsCmd
}
