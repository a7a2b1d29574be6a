package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starcourier/starcourier/pkg/achievements"
	"github.com/starcourier/starcourier/pkg/api"
	"github.com/starcourier/starcourier/pkg/game"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/ui"
)

const playHelp = "Enter a choice number, s to save, h for all commands, q to quit."

const playKeys = `Commands
  1..n  take a choice
  s     save the game
  r     refresh stats from the server
  i     crew and stats
  l     local saves
  a     achievements
  h     this help
  q     quit
Press enter to close.`

// playView is the interactive loop's state. While a dialog is open the next
// line only closes it.
type playView struct {
	game         *game.Store
	modals       *ui.Modals
	achievements *achievements.Tracker
}

func newPlayCmd(configPath *string) *cobra.Command {
	var (
		playerID string
		loadID   string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the story interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			unsub := a.notes.Subscribe(func(n models.Notification) {
				if n.Active {
					fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Type, n.Message)
				}
			})
			defer unsub()

			if !a.client.IsAvailable(ctx) {
				return fmt.Errorf("game service at %s is not reachable", a.client.BaseURL())
			}
			if loadID != "" {
				if _, err := a.game.Load(ctx, loadID); err != nil {
					return err
				}
			} else if _, err := a.game.StartGame(ctx, playerID); err != nil {
				return err
			}
			return a.playView().run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&playerID, "player", "", "player id (generated when omitted)")
	cmd.Flags().StringVar(&loadID, "load", "", "resume a local save instead of starting")
	return cmd
}

// run reads commands from in until q or EOF. Failed actions are reported
// and the loop continues.
func (v *playView) run(ctx context.Context, in io.Reader, out io.Writer) error {
	g := v.game
	scanner := bufio.NewScanner(in)
	render(out, g.Session().State())
	fmt.Fprintln(out, playHelp)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		if v.modals.AnyOpen() {
			v.modals.CloseAll()
			render(out, g.Session().State())
			continue
		}

		switch input {
		case "":
			continue
		case "q", "quit":
			return nil
		case "h", "help", "?":
			v.open(ctx, out, ui.ModalHelp)
			continue
		case "i":
			v.open(ctx, out, ui.ModalInventory)
			continue
		case "l":
			v.open(ctx, out, ui.ModalSaves)
			continue
		case "a":
			v.open(ctx, out, ui.ModalAchievements)
			continue
		case "s", "save":
			rec, err := g.Save(ctx, "")
			if err != nil {
				fmt.Fprintln(out, api.UserMessage(err, "save game"))
				continue
			}
			fmt.Fprintf(out, "Saved %s (%s)\n", rec.Name, rec.ID)
			continue
		case "r", "refresh":
			st, err := g.RefreshStats(ctx)
			if err != nil {
				fmt.Fprintln(out, api.UserMessage(err, "refresh stats"))
				continue
			}
			renderStats(out, st)
			continue
		}

		n, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintln(out, playHelp)
			continue
		}
		st, err := g.Choose(ctx, n-1)
		if err != nil {
			fmt.Fprintln(out, api.UserMessage(err, "make choice"))
			continue
		}
		render(out, st)
	}
}

// open shows a dialog. A dialog that cannot be drawn is not left open.
func (v *playView) open(ctx context.Context, out io.Writer, name string) {
	v.modals.Open(name)
	var err error
	switch name {
	case ui.ModalHelp:
		fmt.Fprintln(out, playKeys)
	case ui.ModalInventory:
		renderCrew(out, v.game.Session().State())
	case ui.ModalSaves:
		var saves []models.SaveRecord
		if saves, err = v.game.ListSaves(ctx); err == nil {
			err = printSaves(out, saves)
		}
	case ui.ModalAchievements:
		renderAchievements(out, v.achievements)
	}
	if err != nil {
		v.modals.Close(name)
		fmt.Fprintln(out, api.UserMessage(err, "list saves"))
		return
	}
	if name != ui.ModalHelp {
		fmt.Fprintln(out, "Press enter to close.")
	}
}

func renderCrew(out io.Writer, st game.State) {
	renderStats(out, st)
	ids := make([]string, 0, len(st.Relationships))
	for id := range st.Relationships {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "  %-16s %3d\n", id, st.Relationships[id])
	}
}

func renderAchievements(out io.Writer, t *achievements.Tracker) {
	if t == nil {
		fmt.Fprintln(out, "Achievements are not tracked.")
		return
	}
	fmt.Fprintf(out, "Achievements (%d%% complete)\n", t.CompletionPercentage())
	for _, ach := range t.All() {
		if ach.Secret && !ach.Unlocked {
			continue
		}
		mark := " "
		if ach.Unlocked {
			mark = "x"
		}
		fmt.Fprintf(out, "  [%s] %s\n", mark, ach.Title)
	}
}

func render(out io.Writer, st game.State) {
	if !st.Active {
		fmt.Fprintln(out, "No game in progress.")
		return
	}
	if sc := st.CurrentScene; sc != nil && !st.IsGameOver() {
		fmt.Fprintf(out, "\n== %s ==\n", sc.Title)
		if sc.Character != "" {
			fmt.Fprintf(out, "(%s)\n", sc.Character)
		}
		fmt.Fprintln(out, sc.Text)
		for i, c := range sc.Choices {
			fmt.Fprintf(out, "  %d. %s\n", i+1, c.Text)
		}
	}
	renderStats(out, st)
	if st.IsGameOver() {
		reason := st.EndReason
		if reason == "" {
			reason = "the crew can go no further"
		}
		fmt.Fprintf(out, "GAME OVER: %s. Save with s or quit with q.\n", reason)
	}
}

func renderStats(out io.Writer, st game.State) {
	values := st.Stats.Map()
	parts := make([]string, 0, len(models.AllStats))
	for _, n := range models.AllStats {
		parts = append(parts, fmt.Sprintf("%s %d", n, values[n]))
	}
	fmt.Fprintf(out, "[%s] progress %d%%\n", strings.Join(parts, " | "), st.Progress())
}
