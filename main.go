package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"Ripple/pkg/core"
	"Ripple/pkg/models"
	"Ripple/pkg/ws"
)

func main() {
	server := flag.String("server", "ws://localhost:8080/ws", "chat server websocket URL")
	useMock := flag.Bool("mock", false, "run against the built-in simulated peers instead of a server")
	name := flag.String("name", "", "display name to log in with when no session is persisted")
	flag.Parse()

	cfg := core.Config{}
	cfg.Set("server", *server)
	cfg.Set("mock", *useMock)

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	app.Subscribe(printEvent)
	app.SubscribeConnectionState(func(s ws.State) {
		fmt.Printf("* connection: %s\n", s)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Startup(ctx); err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Shutdown()

	if !app.IsAuthenticated() {
		if *name == "" {
			log.Fatal("no persisted session, pass -name to log in")
		}
		user := app.LoginGuest(*name)
		fmt.Printf("* logged in as %s (%s)\n", user.Name, user.ID)
	}
	app.SelectConversation(core.DefaultConversationID)

	fmt.Println("* type a message and press enter; /react <id> <likes|dislikes>, /who, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if runCommand(app, line) {
				return
			}
			continue
		}
		if _, err := app.SendMessage(core.DefaultConversationID, line); err != nil {
			fmt.Printf("* send failed: %v\n", err)
		}
	}
}

// runCommand handles a slash command and reports whether to exit.
func runCommand(app *App, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/who":
		for _, u := range app.OnlineUsers() {
			fmt.Printf("* online: %s\n", u)
		}
	case "/react":
		if len(fields) != 3 {
			fmt.Println("* usage: /react <message-id> <likes|dislikes>")
			return false
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Printf("* bad message id %q\n", fields[1])
			return false
		}
		kind := models.ReactionKind(fields[2])
		if !kind.Valid() {
			fmt.Printf("* unknown reaction %q\n", fields[2])
			return false
		}
		if err := app.React(id, kind); err != nil {
			fmt.Printf("* react failed: %v\n", err)
		}
	case "/logout":
		app.Logout()
		fmt.Println("* logged out")
		return true
	default:
		fmt.Printf("* unknown command %s\n", fields[0])
	}
	return false
}

func printEvent(e core.Event) {
	switch ev := e.(type) {
	case core.MessageEvent:
		fmt.Printf("[%d] %s: %s\n", ev.Message.ID, ev.Message.Sender, ev.Message.Content)
	case core.PresenceEvent:
		fmt.Printf("* %s is %s\n", ev.UserID, ev.Status)
	case core.TypingEvent:
		if ev.IsTyping {
			fmt.Printf("* %s is typing...\n", ev.UserID)
		}
	case core.ReactionEvent:
		fmt.Printf("* %s reacted %s to message %d\n", ev.UserID, ev.Reaction, ev.MessageID)
	case core.OnlineUsersEvent:
		fmt.Printf("* online now: %s\n", strings.Join(ev.Users, ", "))
	}
}
