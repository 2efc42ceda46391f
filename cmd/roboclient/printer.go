package main

import (
	"fmt"
	"sort"
	"strings"

	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/game"
	"example.com/robo-sync/internal/lobby"
	"example.com/robo-sync/internal/model"
	"example.com/robo-sync/internal/pause"
	"github.com/fatih/color"
)

var (
	successFmt   = color.New(color.Bold, color.FgGreen)
	dangerFmt    = color.New(color.Bold, color.FgRed)
	warningFmt   = color.New(color.Bold, color.FgYellow)
	importantFmt = color.New(color.Bold, color.FgHiWhite)
	noticeFmt    = color.New(color.FgHiBlack)
)

// printer writes one line per visible change.
type printer struct {
	last game.View
}

func (p *printer) view(v game.View) {
	prev := p.last
	p.last = v

	if v.Phase != prev.Phase {
		importantFmt.Printf("phase %s\n", v.Phase)
	}
	if len(v.Hand) > 0 && !sameCards(v.Hand, prev.Hand) {
		fmt.Printf("hand  %s\n", cards(v.Hand))
	}
	if v.ShufflePending && !prev.ShufflePending {
		noticeFmt.Println("shuffling deck...")
	}
	if v.Program.Locked() && !prev.Program.Locked() {
		successFmt.Printf("locked %s\n", cards(v.Program.Cards()))
	}
	if v.Cursor.Revealed != prev.Cursor.Revealed && v.Cursor.Revealed >= 0 {
		importantFmt.Printf("register %d\n", v.Cursor.Revealed)
		for _, pl := range v.Players {
			fmt.Printf("  %-12s %s\n", pl.Username, v.CardAt(pl.Username, v.Cursor.Revealed))
		}
	}
	if v.Cursor.Turn != prev.Cursor.Turn && v.Cursor.Turn != "" {
		fmt.Printf("turn  %s\n", v.Cursor.Turn)
	}
	for _, pl := range v.Players {
		old, ok := prev.Player(pl.Username)
		if ok && (old.PositionX != pl.PositionX || old.PositionY != pl.PositionY || old.Direction != pl.Direction) {
			noticeFmt.Printf("  %s -> (%d,%d) %s\n", pl.Username, pl.PositionX, pl.PositionY, pl.Direction)
		}
	}
	if v.Cursor.BoardPending && !prev.Cursor.BoardPending {
		noticeFmt.Println("board elements...")
	}
	if v.Winner != "" && v.Winner != prev.Winner {
		successFmt.Printf("winner %s\n", v.Winner)
	}
	if v.Result != nil && prev.Result == nil {
		ratings(v.Result)
	}
}

func (p *printer) lobby(s lobby.State) {
	names := make([]string, 0, len(s.Players))
	for _, pl := range s.Players {
		mark := dangerFmt.Sprint("x")
		if pl.Ready {
			mark = successFmt.Sprint("ok")
		}
		names = append(names, pl.Username+" "+mark)
	}
	fmt.Printf("%s [%s] host=%s  %s\n", importantFmt.Sprint(s.Name), s.GameID, s.Host, strings.Join(names, ", "))
	if s.Started {
		successFmt.Println("game started")
	}
}

func (p *printer) pause(s pause.State) {
	switch s.Status {
	case pause.RequestPending:
		warningFmt.Printf("pause requested by %s (%d/%d answered)\n", s.Requester, len(s.Responses), s.Expected)
	case pause.Resolved:
		if s.Result != nil && s.Result.Approved {
			warningFmt.Println("pause approved")
		} else {
			noticeFmt.Println("pause denied, game continues")
		}
	}
}

func (p *printer) err(err error) {
	dangerFmt.Println(err.Error())
}

func ratings(r *game.Result) {
	names := make([]string, 0, len(r.NewRatings))
	for n := range r.NewRatings {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		diff := r.NewRatings[n] - r.OldRatings[n]
		f := successFmt
		if diff < 0 {
			f = dangerFmt
		}
		fmt.Printf("  %-12s %5d ", n, r.NewRatings[n])
		f.Printf("%+d\n", diff)
	}
}

func listings(lobbies []api.Lobby, paused, history []api.GameSummary) {
	importantFmt.Println("open lobbies")
	for _, l := range lobbies {
		fmt.Printf("  %-36s %-20s host=%s\n", l.GameID, l.GameRoomName, l.HostUsername)
	}
	importantFmt.Println("paused games")
	for _, g := range paused {
		fmt.Printf("  %-36s %s\n", g.GameID, g.GameRoomName)
	}
	importantFmt.Println("history")
	for _, g := range history {
		fmt.Printf("  %-36s %-20s winner=%s\n", g.GameID, g.GameRoomName, g.Winner)
	}
}

func cards(cs []model.Card) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		if c == "" {
			c = "-"
		}
		parts[i] = string(c)
	}
	return strings.Join(parts, " | ")
}

func sameCards(a, b []model.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
