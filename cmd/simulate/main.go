package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"smart-support-bot/internal/delivery"
	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/internal/repository/memory"
	"smart-support-bot/pkg/conversation"
	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/presentation"
	"smart-support-bot/pkg/search"
	"smart-support-bot/pkg/store"

	"github.com/fatih/color"
)

func main() {
	file := flag.String("file", "", "local dataset (.csv or .xlsx); empty uses the synthetic dataset")
	level := flag.String("log-level", "WARN", "log level")
	flag.Parse()

	botColor := color.New(color.FgCyan)
	buttonColor := color.New(color.FgYellow)
	infoColor := color.New(color.FgHiBlack)
	errColor := color.New(color.FgRed, color.Bold)

	log := logger.NewConsoleLogger(*level)
	defer log.Sync()

	ctx := context.Background()
	ds := dataset.NewStore(log)
	ds.Configure(dataset.LocalSource(*file))
	if _, err := ds.Load(ctx); err != nil {
		errColor.Printf("dataset load failed: %v\n", err)
	}

	outbox := delivery.NewOutbox(log)
	engine := conversation.NewEngine(
		memory.NewSessionRepository(0),
		search.NewStubMatcher(),
		ds,
		presentation.NewBuilder("Smart Support Bot"),
		outbox,
		log,
	)

	key := store.Key{ChatID: 1, UserID: 1}
	fmt.Println("=== Smart Support Bot console ===")
	infoColor.Println("/start, /cancel, !<callback_data> for buttons, anything else is free text; Ctrl+D to quit")

	seen := map[string]int{}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()

		ev := conversation.Event{Key: key, UserName: "Гость"}
		switch {
		case strings.HasPrefix(line, "/"):
			ev.Kind = conversation.KindCommand
			ev.Command = strings.TrimPrefix(strings.Fields(line + " ")[0], "/")
		case strings.HasPrefix(line, "!"):
			ev.Kind = conversation.KindCallback
			ev.CallbackData = strings.TrimPrefix(line, "!")
		default:
			ev.Kind = conversation.KindText
			ev.Text = line
		}

		res := engine.Handle(ctx, ev)

		for _, m := range outbox.Messages(key.ChatID) {
			if seen[m.Ref] == m.Revision {
				continue
			}
			label := "new"
			if _, ok := seen[m.Ref]; ok {
				label = "edited"
			}
			seen[m.Ref] = m.Revision

			infoColor.Printf("[%s %s]\n", label, m.Ref[:8])
			botColor.Println(m.Payload.Text)
			for _, row := range m.Payload.Keyboard {
				labels := make([]string, len(row))
				for i, b := range row {
					labels[i] = fmt.Sprintf("[%s → !%s]", b.Label, b.Data)
				}
				buttonColor.Println(strings.Join(labels, "  "))
			}
		}
		infoColor.Printf("phase=%s outcome=%s\n", res.Phase, res.Outcome)
	}
}
