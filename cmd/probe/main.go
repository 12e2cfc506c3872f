// Probe is a terminal diagnostic client: it dials the WebSocket
// endpoint, joins a room, sends a heartbeat and renders the online-user
// directory as a table.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	ServerURL string        `envconfig:"PROBE_SERVER_URL" default:"ws://localhost:8080/ws"`
	Token     string        `envconfig:"PROBE_TOKEN"`
	Room      string        `envconfig:"PROBE_ROOM" default:"probe"`
	UserID    string        `envconfig:"PROBE_USER_ID" default:"probe"`
	Username  string        `envconfig:"PROBE_USERNAME" default:"probe"`
	Timeout   time.Duration `envconfig:"PROBE_TIMEOUT" default:"5s"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	url := cfg.ServerURL
	if cfg.Token != "" {
		url += "?token=" + cfg.Token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	color.Green.Printf("Connected to %s\n", cfg.ServerURL)

	send(conn, "join-room", map[string]any{
		"roomId":     cfg.Room,
		"userId":     cfg.UserID,
		"username":   cfg.Username,
		"mediaState": map[string]bool{"audio": false, "video": false},
	}, "")
	send(conn, "heartbeat", nil, "hb")
	send(conn, "get-online-users", nil, "online")

	deadline := time.Now().Add(cfg.Timeout)
	_ = conn.SetReadDeadline(deadline)

	var users []string
	heartbeatOK := false
	for pending := 2; pending > 0; {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			color.Red.Printf("Read failed: %v\n", err)
			break
		}
		if f.Event != "ack" {
			continue
		}
		switch f.Ack {
		case "hb":
			var hb struct {
				OK        bool  `json:"ok"`
				Timestamp int64 `json:"timestamp"`
			}
			_ = json.Unmarshal(f.Data, &hb)
			heartbeatOK = hb.OK
			pending--
		case "online":
			var online struct {
				Users []string `json:"users"`
			}
			_ = json.Unmarshal(f.Data, &online)
			users = online.Users
			pending--
		}
	}

	if heartbeatOK {
		color.Green.Println("Heartbeat acknowledged")
	} else {
		color.Yellow.Println("Heartbeat not tracked (anonymous identity has no presence record)")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Online user"})
	for i, u := range users {
		table.Append([]string{fmt.Sprintf("%d", i+1), u})
	}
	table.Render()
}

func send(conn *websocket.Conn, event string, data any, ack string) {
	f := map[string]any{"event": event}
	if data != nil {
		f["data"] = data
	}
	if ack != "" {
		f["ack"] = ack
	}
	if err := conn.WriteJSON(f); err != nil {
		log.Fatalf("Write failed: %v", err)
	}
}
