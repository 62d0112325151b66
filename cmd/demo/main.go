package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/eventbus"
	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/pkg/hub"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a .json or .yaml config file")
		username   = flag.String("user", "Alice", "username to join as")
		responder  = flag.Bool("responder", true, "let simulated peers reply")
	)
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Simulation.Responder.Enabled = *responder

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: "pretty"})

	client := hub.NewClient(hub.Options{
		Simulation: cfg.Simulation,
		Logger:     logger,
	})
	defer client.Close()

	for _, name := range eventbus.Names() {
		client.On(name, printEvent)
	}

	ctx := context.Background()
	settle := cfg.Simulation.RoundTripDelay + 100*time.Millisecond

	for _, msg := range client.History() {
		fmt.Printf("  history #%d %s: %s\n", msg.ID, msg.Sender, msg.Content)
	}

	if err := client.StartConnection(ctx); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	fmt.Println("state:", client.State())

	if _, err := client.JoinChat(ctx, *username); err != nil {
		log.Fatalf("join failed: %v", err)
	}
	time.Sleep(settle)

	if _, err := client.SendMessage(ctx, *username, "Hello everyone!"); err != nil {
		log.Fatalf("send failed: %v", err)
	}
	time.Sleep(settle)

	debug := client.Debug()
	debug.SimulateUserJoin("Bob")
	debug.SimulateMessage("Bob", "Hey, welcome!")
	debug.SimulateUserList()
	drain(client)

	if cfg.Simulation.Responder.Enabled {
		time.Sleep(cfg.Simulation.Responder.MaxDelay)
	}

	debug.SimulateDisconnect()
	drain(client)
	fmt.Println("state:", client.State())

	if _, err := client.SendMessage(ctx, *username, "anyone there?"); err != nil {
		fmt.Println("send while disconnected:", err)
	}

	debug.SimulateReconnect()
	debug.SimulateUserLeave("Bob")
	drain(client)

	if err := client.StopConnection(ctx); err != nil {
		log.Fatalf("failed to disconnect: %v", err)
	}
	fmt.Println("state:", client.State())
	fmt.Printf("history holds %d messages\n", len(client.History()))
}

// drain waits until the client's task queue has run everything queued so far
func drain(client *hub.Client) {
	done := make(chan struct{})
	client.Enqueue(func() { close(done) })
	<-done
}

func printEvent(event *eventbus.Event) {
	switch data := event.Data.(type) {
	case eventbus.MessagePayload:
		fmt.Printf("[%s] %s: %s\n", event.Name, data.Sender, data.Content)
	case eventbus.UserPayload:
		fmt.Printf("[%s] %s\n", event.Name, data.Username)
	case eventbus.UserListPayload:
		fmt.Printf("[%s] %v\n", event.Name, data.Users)
	case eventbus.ConnectionPayload:
		fmt.Printf("[%s] %s\n", event.Name, data.Reason)
	default:
		fmt.Printf("[%s] %v\n", event.Name, event.Data)
	}
}
