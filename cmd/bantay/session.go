package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay/core"
)

func newLoginCmd(rt *runtime) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in := bufio.NewReader(cmd.InOrStdin())

			user, err := readValue(in, cmd.ErrOrStderr(), username, "Username")
			if err != nil {
				return err
			}
			pass, err := readValue(in, cmd.ErrOrStderr(), password, "Password")
			if err != nil {
				return err
			}

			b, err := rt.dashboard(ctx, nil)
			if err != nil {
				return err
			}
			p := rt.printer(cmd.OutOrStdout())
			if err := p.Result(b.Forms.Login(ctx, core.Credentials{Username: user, Password: pass})); err != nil {
				return err
			}

			state, err := b.Session.Wait(ctx)
			if err != nil {
				return err
			}
			if !state.Authenticated() {
				return fmt.Errorf("token accepted but identity lookup did not complete (status %s)", state.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty; prefer BANTAY_PASSWORD)")
	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := rt.dashboard(ctx, nil)
			if err != nil {
				return err
			}
			if _, err := rt.restore(ctx, b); err != nil {
				return err
			}
			return rt.printer(cmd.OutOrStdout()).Result(b.Forms.Logout(ctx, rt.confirmer(cmd)))
		},
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := rt.dashboard(ctx, nil)
			if err != nil {
				return err
			}
			state, err := rt.restore(ctx, b)
			if err != nil {
				return err
			}

			p := rt.printer(cmd.OutOrStdout())
			if p.json {
				return p.JSON(state)
			}
			if !state.Authenticated() {
				fmt.Fprintf(cmd.OutOrStdout(), "Not logged in (%s).\n", state.Status)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> role=%s\n", state.User.Username, state.User.Email, state.User.Role)
			if state.ExpiresAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "token expires %s\n", state.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newRegisterCmd(rt *runtime) *cobra.Command {
	var reg core.Registration
	var role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (does not log in)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if reg.Username, err = readValue(in, cmd.ErrOrStderr(), reg.Username, "Username"); err != nil {
				return err
			}
			if reg.Email, err = readValue(in, cmd.ErrOrStderr(), reg.Email, "Email"); err != nil {
				return err
			}
			if reg.Password, err = readValue(in, cmd.ErrOrStderr(), reg.Password, "Password"); err != nil {
				return err
			}
			reg.Role = core.Role(role)

			b, err := rt.dashboard(ctx, nil)
			if err != nil {
				return err
			}
			return rt.printer(cmd.OutOrStdout()).Result(b.Forms.Register(ctx, reg))
		},
	}
	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&role, "role", string(core.RoleStudent), "account role")
	return cmd
}
