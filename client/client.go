package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"chat-hub/infrastructure/ws"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:8080"`
	Username   string `envconfig:"CHAT_USERNAME" required:"true"`
	RoomID     string `envconfig:"CHAT_ROOM_ID"`
	Colours    bool   `envconfig:"CHAT_COLOURS" default:"true"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle: configuration, connection,
// the frame reception loop, and the stdin command loop.
func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := printRooms(config.ServerAddr); err != nil {
		return exitRuntime, err
	}
	if config.RoomID == "" {
		return exitConfig, fmt.Errorf("CHAT_ROOM_ID is required, pick one from the list above")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		fmt.Sprintf("ws://%s/ws", config.ServerAddr), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddr, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	if err := send(conn, ws.EventJoinRoom, ws.JoinRoomPayload{
		Username: config.Username,
		RoomID:   config.RoomID,
	}); err != nil {
		return exitRuntime, err
	}

	fmt.Printf(">>> Connected to %s as %s, Room %s (Ctrl+C to quit)\n",
		config.ServerAddr, config.Username, config.RoomID)

	errChan := make(chan error, 1)
	go receiveLoop(conn, config.Username, errChan)
	go inputLoop(conn, config.Username, errChan)

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		return exitOK, nil
	case err := <-errChan:
		if err != nil {
			return exitRuntime, err
		}
		return exitOK, nil
	}
}

// printRooms fetches the room list over REST and renders it as a table.
func printRooms(addr string) error {
	resp, err := http.Get(fmt.Sprintf("http://%s/rooms", addr))
	if err != nil {
		return fmt.Errorf("could not list rooms: %w", err)
	}
	defer resp.Body.Close()

	var rooms []ws.RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return fmt.Errorf("could not decode room list: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room ID", "Name"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, room := range rooms {
		table.Append([]string{room.ID, room.Name})
	}
	table.Render()
	return nil
}

// receiveLoop renders every incoming frame until the connection drops.
func receiveLoop(conn *websocket.Conn, self string, errChan chan<- error) {
	for {
		var env ws.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			errChan <- fmt.Errorf("connection lost: %w", err)
			return
		}
		render(env, self)
	}
}

func render(env ws.Envelope, self string) {
	switch env.Event {
	case ws.EventNewMessage:
		var p ws.NewMessagePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		line := fmt.Sprintf("[%s] %s: %s", p.CreatedAt.Format(time.TimeOnly), p.Username, p.Content)
		if p.Username == self {
			fmt.Println(color.FgCyan.Render(line))
		} else {
			fmt.Println(color.FgGreen.Render(line))
		}
	case ws.EventUserJoined:
		var p ws.UserJoinedPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		fmt.Println(color.FgYellow.Render(
			fmt.Sprintf("* %s joined (%d online)", p.Username, len(p.Members))))
	case ws.EventTyping:
		var p ws.TypingPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		if p.Username != self {
			fmt.Println(color.FgGray.Render(fmt.Sprintf("* %s is typing...", p.Username)))
		}
	case ws.EventStopTyping:
		// Quiet: the next message or timeout speaks for itself.
	case ws.EventMessagesSeen:
		var p ws.MessagesSeenPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		fmt.Println(color.FgGray.Render("* messages seen"))
	case ws.EventUserOffline:
		var p ws.UserOfflinePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		fmt.Println(color.FgYellow.Render(fmt.Sprintf("* %s went offline", p.Username)))
	case ws.EventError:
		var p ws.ErrorPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		fmt.Println(color.New(color.BgBlack, color.FgRed).Render("! " + p.Message))
	}
}

// inputLoop turns stdin lines into frames. A leading slash introduces a
// command; anything else is sent as a message.
func inputLoop(conn *websocket.Conn, username string, errChan chan<- error) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case strings.HasPrefix(line, "/join "):
			roomID := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
			err = send(conn, ws.EventJoinRoom, ws.JoinRoomPayload{
				Username: username,
				RoomID:   roomID,
			})
		case line == "/seen":
			err = send(conn, ws.EventMessageSeen, nil)
		case line == "/quit":
			errChan <- nil
			return
		default:
			var frames []ws.Envelope
			frames, err = messageFrames(line)
			for _, frame := range frames {
				if err != nil {
					break
				}
				err = conn.WriteJSON(frame)
			}
		}
		if err != nil {
			errChan <- err
			return
		}
	}
	errChan <- scanner.Err()
}

// messageFrames brackets a chat message with typing signals, so the room
// sees the composition start and its explicit end around the message.
func messageFrames(content string) ([]ws.Envelope, error) {
	payload, err := json.Marshal(ws.SendMessagePayload{Content: content})
	if err != nil {
		return nil, err
	}
	return []ws.Envelope{
		{Event: ws.EventTyping},
		{Event: ws.EventSendMessage, Payload: payload},
		{Event: ws.EventStopTyping},
	}, nil
}

func send(conn *websocket.Conn, eventName string, payload any) error {
	env := ws.Envelope{Event: eventName}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Payload = data
	}
	return conn.WriteJSON(env)
}
