package login

import (
	"github.com/spf13/cobra"
)

func NewLoginCommand() *cobra.Command {
	var email string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the AgriGrow backend",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return loginCmd(email, password)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted when omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")

	return cmd
}

func NewRegisterCommand() *cobra.Command {
	var fullName string
	var email string
	var password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an AgriGrow account",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return registerCmd(fullName, email, password)
		},
	}

	cmd.Flags().StringVarP(&fullName, "name", "n", "", "Full name (prompted when omitted)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted when omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")

	return cmd
}

func NewProfileCommand() *cobra.Command {
	var fullName string
	var image string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the logged-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return profileCmd(fullName, image, cmd.Flags().Changed("name"), cmd.Flags().Changed("image"))
		},
	}

	cmd.Flags().StringVarP(&fullName, "name", "n", "", "New full name")
	cmd.Flags().StringVar(&image, "image", "", "New profile image URL")

	return cmd
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the saved session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return logoutCmd()
		},
	}
}

func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return whoamiCmd()
		},
	}
}
