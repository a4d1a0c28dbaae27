package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/rules"
	"github.com/DoyleJ11/pokdeng/internal/session"
)

const chatLines = 5

// render draws the table as seen by selfID.
func render(u session.Update, selfID string, timer *session.TurnTimer) string {
	s := u.State
	if s.IsEmpty() {
		return pterm.Sprintln("waiting for the host...")
	}

	seats := s.Players
	if s.Game != nil {
		seats = s.Game.Players
	}
	var others []pterm.Panel
	var mine []pterm.Panel
	for _, p := range seats {
		panel := pterm.Panel{Data: playerBox(p, s, selfID)}
		if p.ID == selfID {
			mine = append(mine, panel)
		} else {
			others = append(others, panel)
		}
	}

	table := []pterm.Panel{{Data: statusBox(s, selfID, timer)}}
	if len(u.Results) > 0 {
		table = append(table, pterm.Panel{Data: resultsBox(u.Results, s, selfID)})
	}
	if u.Notice != "" {
		table = append(table, pterm.Panel{Data: pterm.LightYellow(u.Notice)})
	}

	rows := [][]pterm.Panel{others, table, append(mine, pterm.Panel{Data: chatBox(s.Messages)})}
	out, err := pterm.DefaultPanel.WithPanels(rows).Srender()
	if err != nil {
		return err.Error()
	}
	return out
}

func playerBox(p engine.Player, s engine.State, selfID string) string {
	box := pterm.DefaultBox.WithHorizontalPadding(2)
	title := p.Name
	if p.IsDealer {
		title += " (dealer)"
	}

	var status string
	switch {
	case !p.IsOnline:
		status = pterm.Gray("Offline")
	case s.Game == nil && p.IsReady:
		status = pterm.LightGreen("Ready")
	case s.Game == nil:
		status = pterm.LightRed("Not ready")
	default:
		if cur, ok := s.Game.CurrentPlayer(); ok && cur.ID == p.ID {
			status = pterm.LightCyan("To act")
		} else {
			status = pterm.LightGreen("Playing")
		}
	}

	lines := []string{status, fmt.Sprintf("Balance: %d", p.Balance)}
	if !p.IsDealer {
		lines = append(lines, fmt.Sprintf("Bet: %d", p.Bet))
	}
	showdown := s.Game != nil && s.Game.Phase == engine.PhaseShowdown
	if len(p.Cards) > 0 {
		if p.ID == selfID || showdown {
			h := p.Hand()
			lines = append(lines, pterm.BgGreen.Sprint(cards(p.Cards))+fmt.Sprintf("  %d %s", h.Score, h.Type))
		} else {
			lines = append(lines, strings.Repeat("[?] ", len(p.Cards)))
		}
	}
	return box.WithTitle(title).WithTitleTopLeft().Sprint(strings.Join(lines, "\n"))
}

func statusBox(s engine.State, selfID string, timer *session.TurnTimer) string {
	box := pterm.DefaultBox.WithHorizontalPadding(4)
	lines := []string{fmt.Sprintf("Room %s  %s", s.RoomCode, engine.DerivePhase(s))}
	if s.Game != nil {
		lines = append(lines, fmt.Sprintf("Round %d", s.Game.Round))
		if cur, ok := s.Game.CurrentPlayer(); ok {
			turn := "Turn: " + cur.Name
			if cur.ID == selfID {
				turn = pterm.LightCyan("Your turn: draw or stand")
				if left, ok := timer.Remaining(); ok {
					turn += fmt.Sprintf(" (%ds)", int(left.Seconds()))
				}
			}
			lines = append(lines, turn)
		}
	}
	return box.WithTitle(pterm.LightYellow("|TABLE|")).WithTitleTopCenter().Sprint(strings.Join(lines, "\n"))
}

func resultsBox(results []rules.Settlement, s engine.State, selfID string) string {
	box := pterm.DefaultBox.WithHorizontalPadding(4)
	name := func(id string) string {
		if p, ok := s.Player(id); ok {
			return p.Name
		}
		return id
	}
	var lines []string
	for _, r := range results {
		line := fmt.Sprintf("%s wins %d from %s", name(r.WinnerID), r.Amount, name(r.LoserID))
		switch selfID {
		case r.WinnerID:
			line = pterm.LightGreen(line)
		case r.LoserID:
			line = pterm.LightRed(line)
		}
		lines = append(lines, line)
	}
	return box.WithTitle(pterm.LightGreen("|SHOWDOWN|")).WithTitleTopCenter().Sprint(strings.Join(lines, "\n"))
}

func chatBox(msgs []engine.ChatMessage) string {
	box := pterm.DefaultBox.WithHorizontalPadding(2)
	if len(msgs) > chatLines {
		msgs = msgs[len(msgs)-chatLines:]
	}
	lines := []string{}
	for _, m := range msgs {
		lines = append(lines, pterm.LightCyan(m.PlayerName)+": "+m.Message)
	}
	if len(lines) == 0 {
		lines = append(lines, pterm.Gray("no messages yet"))
	}
	return box.WithTitle("Chat").WithTitleTopLeft().Sprint(strings.Join(lines, "\n"))
}

func cards(cs []rules.Card) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return " " + strings.Join(parts, " ") + " "
}
