package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/synapse/internal/leaderboard"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		typeFlag, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		userID, _ := cmd.Flags().GetString("user")

		typ, err := leaderboard.ParseType(typeFlag)
		if err != nil {
			return err
		}

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		board, err := leaderboard.New(s, leaderboard.NopCache{}, nil).Get(cmd.Context(), leaderboard.Request{
			Type:   typ,
			Limit:  limit,
			UserID: userID,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Leaderboard by %s", typ)))
		if len(board.Entries) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No users yet."))
			return nil
		}

		cols := []column{
			{title: "#", width: 4, right: true},
			{title: "User", width: 24},
			{title: "XP", width: 8, right: true},
			{title: "Level", width: 5, right: true},
			{title: "Streak", width: 6, right: true},
			{title: "Done", width: 6, right: true},
		}
		fmt.Fprintln(out, renderHeader(cols))
		for _, e := range board.Entries {
			style := bodyStyle
			if e.UserID == userID {
				style = titleStyle
			}
			fmt.Fprintln(out, renderRow(cols, []string{
				strconv.Itoa(e.Rank),
				e.Username,
				strconv.Itoa(e.XP),
				strconv.Itoa(e.Level),
				strconv.Itoa(e.CurrentStreak),
				strconv.Itoa(e.TotalChallenges),
			}, style))
		}
		fmt.Fprintln(out, rule(cols))
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d of %d users", len(board.Entries), board.Total)))
		if board.UserRank != nil {
			fmt.Fprintf(out, "%s is ranked #%d\n", userID, *board.UserRank)
		}
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().StringP("type", "t", "xp", "Ranking: xp, streak or level")
	leaderboardCmd.Flags().IntP("limit", "n", leaderboard.DefaultLimit, "Number of entries to show")
	leaderboardCmd.Flags().StringP("user", "u", "", "Highlight and rank this user id")
}
