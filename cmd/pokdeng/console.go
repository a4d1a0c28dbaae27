package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/DoyleJ11/pokdeng/internal/session"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  ready | unready      mark yourself (not) ready
  bet N                set your bet for the next round
  draw | stand         act on your turn
  chat TEXT            say something
  start | next | kick ID   host only: deal, deal again, remove a player
  leave                leave the room`

// play renders every update to out and runs console commands read from in
// until the session ends or the player leaves.
func play(ctx context.Context, s session.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	updates := s.Watch()
	for {
		select {
		case <-ctx.Done():
			return leave(s)

		case <-s.Done():
			if err := s.Err(); err != nil {
				pterm.Error.Println(err)
				return err
			}
			return nil

		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			fmt.Fprintln(out, render(u, s.Self().ID, s.TurnTimer()))

		case line, ok := <-lines:
			if !ok {
				return leave(s)
			}
			err := dispatch(ctx, s, line, out)
			if errors.Is(err, errQuit) {
				return leave(s)
			}
			if err != nil {
				pterm.Warning.Println(err)
			}
		}
	}
}

func leave(s session.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.LeaveRoom(ctx)
}

// dispatch runs one console line against the session.
func dispatch(ctx context.Context, s session.Session, line string, out io.Writer) error {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "":
		return nil
	case "help", "?":
		fmt.Fprintln(out, helpText)
		return nil
	case "ready":
		return s.SetReady(ctx, true)
	case "unready":
		return s.SetReady(ctx, false)
	case "bet":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("bet needs an amount")
		}
		return s.PlaceBet(ctx, n)
	case "draw":
		return s.DrawCard(ctx)
	case "stand":
		return s.Stand(ctx)
	case "start":
		return s.StartGame(ctx)
	case "next":
		return s.NewRound(ctx)
	case "kick":
		if arg == "" {
			return fmt.Errorf("kick needs a player id")
		}
		return s.Kick(ctx, arg)
	case "chat", "say":
		return s.SendChat(ctx, arg)
	case "leave", "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q, try help", verb)
}
