// AgriChat - terminal client for the AgriGrow marketplace chat service

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrigrow/agrichat/cmd/agrichat/internal"
	"github.com/agrigrow/agrichat/cmd/agrichat/internal/chat"
	"github.com/agrigrow/agrichat/cmd/agrichat/internal/login"
	"github.com/agrigrow/agrichat/cmd/agrichat/internal/products"
	"github.com/agrigrow/agrichat/cmd/agrichat/internal/version"
)

func NewAgrichatCommand() *cobra.Command {
	short := fmt.Sprintf("%s agrichat - AgriGrow marketplace chat v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "agrichat",
		Short:   short,
		Example: "agrichat chat farmer@example.com",
	}

	cmd.AddCommand(
		login.NewRegisterCommand(),
		login.NewLoginCommand(),
		login.NewLogoutCommand(),
		login.NewWhoamiCommand(),
		login.NewProfileCommand(),
		chat.NewChatCommand(),
		chat.NewParticipantsCommand(),
		products.NewProductsCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewAgrichatCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
