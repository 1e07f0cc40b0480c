package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npratt/pipeboard/internal/services"
)

func newProjectsCmd(a *app) *cobra.Command {
	projectsCmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "List, create, and inspect projects",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := a.openSession().ProjectList(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, projects)
			}
			if len(projects) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "No projects yet")
				return nil
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{p.ID, p.Name, string(p.Status), ago(p.UpdatedAt.Time)})
			}
			return printTable(a.stdout, []string{"ID", "NAME", "STATUS", "UPDATED"}, rows)
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := services.ProjectCreate{Name: strings.TrimSpace(args[0])}
			if in.Name == "" {
				return fmt.Errorf("project name is required")
			}
			in.Description, _ = cmd.Flags().GetString(FlagDescription)
			in.Context, _ = cmd.Flags().GetString(FlagContext)

			p, err := a.openSession().CreateProject(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, p)
			}
			_, _ = fmt.Fprintf(a.stdout, "Created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	createCmd.Flags().String(FlagDescription, "", "Project description")
	createCmd.Flags().String(FlagContext, "", "Background context for the agents")

	statusCmd := &cobra.Command{
		Use:   "status [project-id]",
		Short: "Show a project's pipeline state and recent events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			st, err := a.openSession().Project(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, st)
			}

			w := a.stdout
			printField(w, "Name", st.Name)
			printField(w, "ID", st.ID)
			printField(w, "State", string(st.State))
			printField(w, "Created", st.CreatedAt.Format("Jan 2, 2006 3:04 PM"))
			printField(w, "Updated", ago(st.UpdatedAt.Time))
			printField(w, "Success rate", fmt.Sprintf("%.0f%%", st.SuccessRate()))
			if len(st.RecentEvents) == 0 {
				return nil
			}
			_, _ = fmt.Fprintln(w, "\nRecent events:")
			for _, e := range st.RecentEvents {
				mark := "+"
				if !e.Success {
					mark = "x"
				}
				_, _ = fmt.Fprintf(w, "  %s %-22s %s (%s)\n", mark, e.Type, e.Action, ago(e.CreatedAt.Time))
			}
			return nil
		},
	}

	projectsCmd.AddCommand(listCmd, createCmd, statusCmd)
	return projectsCmd
}

func newAuditCmd(a *app) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit [project-id]",
		Short: "Show a page of the project's audit log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.projectID(args)
			if err != nil {
				return err
			}
			var q services.AuditQuery
			q.Page, _ = cmd.Flags().GetInt(FlagPage)
			q.PageSize, _ = cmd.Flags().GetInt(FlagPageSize)
			q.EventType, _ = cmd.Flags().GetString(FlagEventType)

			page, err := a.openSession().AuditLogs(cmd.Context(), id, q)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, page)
			}
			if len(page.Items) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "No audit entries")
				return nil
			}

			rows := make([][]string, 0, len(page.Items))
			for _, e := range page.Items {
				result := "ok"
				if !e.Success {
					result = "failed"
					if e.ErrorMessage != "" {
						result += ": " + e.ErrorMessage
					}
				}
				rows = append(rows, []string{ago(e.CreatedAt.Time), e.EventType, orDash(e.AgentType), e.Action, result})
			}
			if err := printTable(a.stdout, []string{"WHEN", "EVENT", "AGENT", "ACTION", "RESULT"}, rows); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "page %d of %d (%d entries)\n", page.Page, max(1, page.TotalPages), page.Total)
			return nil
		},
	}
	auditCmd.Flags().Int(FlagPage, 1, "Page number")
	auditCmd.Flags().Int(FlagPageSize, services.DefaultAuditPageSize, "Entries per page (10-100)")
	auditCmd.Flags().String(FlagEventType, "", "Only show this event type")
	return auditCmd
}

func newRetryCmd(a *app) *cobra.Command {
	names := make([]string, 0, len(services.AgentTypes))
	for _, t := range services.AgentTypes {
		names = append(names, strings.ToLower(string(t)))
	}

	retryCmd := &cobra.Command{
		Use:       "retry <agent> [project-id]",
		Short:     "Re-run one of the pipeline agents",
		Long:      "Re-run one of the pipeline agents: " + strings.Join(names, ", ") + ".",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, ok := services.ParseAgentType(args[0])
			if !ok {
				return fmt.Errorf("unknown agent %q (want one of %s)", args[0], strings.Join(names, ", "))
			}
			id, err := a.projectID(args[1:])
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool(FlagForce)

			res, err := a.openSession().RetryAgent(cmd.Context(), id, agent, force)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(a.stdout, res)
			}
			_, _ = fmt.Fprintf(a.stdout, "Retry of %s queued (task %s)\n", strings.ToLower(string(agent)), orDash(res.TaskID))
			return nil
		},
	}
	retryCmd.Flags().Bool(FlagForce, false, "Retry even if the agent is not in a failed state")
	return retryCmd
}
