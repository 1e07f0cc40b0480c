package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npratt/pipeboard/internal/services"
)

// requirementFormats are the export encodings the CLI accepts. YAML is
// rendered locally from the requirement list.
var requirementFormats = []string{string(services.ExportMarkdown), string(services.ExportJSON), "yaml"}

func newRequirementsCmd(a *app) *cobra.Command {
	reqCmd := &cobra.Command{
		Use:     "requirements",
		Aliases: []string{"reqs"},
		Short:   "Capture, refine, and export requirements",
	}

	listCmd := &cobra.Command{
		Use:   "list [project-id]",
		Short: "List a project's requirements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			reqs, err := a.openSession().Requirements(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, reqs)
			}
			if len(reqs) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "No requirements yet")
				return nil
			}
			rows := make([][]string, 0, len(reqs))
			for _, r := range reqs {
				rows = append(rows, []string{
					r.Key,
					r.Title,
					string(r.Priority),
					fmt.Sprintf("%d", len(r.AcceptanceCriteria)),
					orDash(strings.Join(r.Dependencies, ", ")),
				})
			}
			return printTable(a.stdout, []string{"KEY", "TITLE", "PRIORITY", "CRITERIA", "DEPENDS ON"}, rows)
		},
	}

	addCmd := &cobra.Command{
		Use:   "add [project-id]",
		Short: "Add a requirement",
		Example: `  pipeboard requirements add --key REQ-001 --title "User login" \
    --priority high --criteria "accepts email and password" --criteria "locks after 5 failures"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var req services.Requirement
			req.Key, _ = flags.GetString(FlagKey)
			req.Title, _ = flags.GetString(FlagTitle)
			req.Description, _ = flags.GetString(FlagDescription)
			priority, _ := flags.GetString(FlagPriority)
			req.Priority = services.Priority(priority)
			req.AcceptanceCriteria, _ = flags.GetStringArray(FlagCriteria)
			req.Dependencies, _ = flags.GetStringSlice(FlagDepends)
			if err := req.Normalize(); err != nil {
				return err
			}

			saved, err := a.openSession().SaveRequirements(cmd.Context(), id, []services.Requirement{req})
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, saved)
			}
			_, _ = fmt.Fprintf(a.stdout, "Added %s: %s\n", req.Key, req.Title)
			return nil
		},
	}
	addCmd.Flags().String(FlagKey, "", "Requirement key, e.g. REQ-001 (required)")
	addCmd.Flags().String(FlagTitle, "", "Short title (required)")
	addCmd.Flags().String(FlagDescription, "", "Longer description")
	addCmd.Flags().String(FlagPriority, string(services.PriorityMedium), "low, medium, high, or critical")
	addCmd.Flags().StringArray(FlagCriteria, nil, "Acceptance criterion (repeatable)")
	addCmd.Flags().StringSlice(FlagDepends, nil, "Keys this requirement depends on (comma-separated)")

	refineCmd := &cobra.Command{
		Use:   "refine [project-id]",
		Short: "Queue a refinement pass over the requirements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			refineContext, _ := cmd.Flags().GetString(FlagContext)

			res, err := a.openSession().RefineRequirements(cmd.Context(), id, refineContext)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, res)
			}
			_, _ = fmt.Fprintf(a.stdout, "Refinement queued (task %s)\n", orDash(res.TaskID))
			return nil
		},
	}
	refineCmd.Flags().String(FlagContext, "", "Extra guidance for the refinement agent")

	finalizeCmd := &cobra.Command{
		Use:   "finalize [project-id]",
		Short: "Mark the requirements ready for planning",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool(FlagForce)

			res, err := a.openSession().FinalizeRequirements(cmd.Context(), id, force)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, res)
			}
			_, _ = fmt.Fprintln(a.stdout, orDash(res.Message))
			return nil
		},
	}
	finalizeCmd.Flags().Bool(FlagForce, false, "Finalize even if coherence checks fail")

	exportCmd := &cobra.Command{
		Use:   "export [project-id]",
		Short: "Export the requirements document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString(FlagFormat)
			output, _ := cmd.Flags().GetString(FlagOutput)

			s := a.openSession()
			var data []byte
			switch strings.ToLower(format) {
			case "yaml", "yml":
				reqs, err := s.Requirements(cmd.Context(), id)
				if err != nil {
					return err
				}
				if data, err = marshalYAML(reqs); err != nil {
					return err
				}
			case string(services.ExportMarkdown), "markdown":
				data, err = s.ExportRequirements(cmd.Context(), id, services.ExportMarkdown)
			case string(services.ExportJSON):
				data, err = s.ExportRequirements(cmd.Context(), id, services.ExportJSON)
			default:
				return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(requirementFormats, ", "))
			}
			if err != nil {
				return err
			}

			wrote, err := writeOutput(a.stdout, output, data)
			if err != nil {
				return err
			}
			if wrote {
				_, _ = fmt.Fprintf(a.stderr, "Wrote %s\n", output)
			}
			return nil
		},
	}
	exportCmd.Flags().String(FlagFormat, string(services.ExportMarkdown), "Output format: "+strings.Join(requirementFormats, ", "))
	exportCmd.Flags().StringP(FlagOutput, "o", "", "Write to this file instead of stdout")

	reqCmd.AddCommand(listCmd, addCmd, refineCmd, finalizeCmd, exportCmd)
	return reqCmd
}
