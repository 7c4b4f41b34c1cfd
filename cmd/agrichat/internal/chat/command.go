package chat

import (
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "chat <participant>",
		Aliases: []string{"c"},
		Short:   "Open a conversation with a participant",
		Long: "Open an interactive conversation. The participant may be given by id, " +
			"email or display name as shown by `agrichat participants`.",
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return chatCmd(args[0], debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func NewParticipantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "participants",
		Aliases: []string{"p"},
		Short:   "List the people you can chat with",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return participantsCmd()
		},
	}
}
