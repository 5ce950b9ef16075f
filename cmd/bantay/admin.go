package main

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay/core"
)

func newExamsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exams",
		Short: "Manage examinations",
	}
	cmd.AddCommand(newExamsListCmd(rt), newExamsCreateCmd(rt), newExamsFinalizeCmd(rt))
	return cmd
}

func newExamsListCmd(rt *runtime) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List examinations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			exams, err := b.Directory.Examinations(cmd.Context(), search)
			if err != nil {
				return err
			}
			return rt.printer(cmd.OutOrStdout()).Exams(exams)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "match title or course code")
	return cmd
}

func newExamsCreateCmd(rt *runtime) *cobra.Command {
	var exam core.NewExamination

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an examination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			return rt.printer(cmd.OutOrStdout()).Result(b.Forms.CreateExamination(cmd.Context(), exam))
		},
	}
	cmd.Flags().StringVar(&exam.Title, "title", "", "examination title")
	cmd.Flags().StringVar(&exam.CourseCode, "course", "", "course code")
	cmd.Flags().IntVar(&exam.DurationMinutes, "duration", 60, "duration in minutes")
	return cmd
}

func newExamsFinalizeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize [id]",
		Short: "Finalize an examination (the active one when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			p := rt.printer(cmd.OutOrStdout())
			confirm := rt.confirmer(cmd)

			if len(args) == 0 {
				return p.Result(b.Forms.FinalizeActive(cmd.Context(), confirm))
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid examination id %q", args[0])
			}
			return p.Result(b.Forms.FinalizeExamination(cmd.Context(), id, confirm))
		},
	}
}

func newStudentsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage student accounts",
	}
	cmd.AddCommand(newStudentsListCmd(rt), newStudentsAddCmd(rt))
	return cmd
}

func newStudentsListCmd(rt *runtime) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			users, err := b.Directory.Students(cmd.Context(), search)
			if err != nil {
				return err
			}
			return rt.printer(cmd.OutOrStdout()).Users(users)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "match username or email")
	return cmd
}

func newStudentsAddCmd(rt *runtime) *cobra.Command {
	var reg core.Registration

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a student account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			if reg.Password, err = readValue(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), reg.Password, "Password"); err != nil {
				return err
			}
			return rt.printer(cmd.OutOrStdout()).Result(b.Forms.AddStudent(cmd.Context(), reg))
		},
	}
	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "initial password (prompted when empty)")
	return cmd
}
