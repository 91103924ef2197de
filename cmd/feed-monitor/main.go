package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"bookgraph/pkg/models"
)

func main() {
	addr := "ws://127.0.0.1:4000/feed"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected to book feed:", addr)
	fmt.Println("Waiting for new books...")

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var evt models.BookAdded
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err := json.Unmarshal(data, &evt); err != nil {
			fmt.Println(string(data))
			continue
		}
		fmt.Printf("[%s] %q by %s (%s)\n", time.Unix(evt.Timestamp, 0).Format(time.TimeOnly), evt.Title, evt.Author, strings.Join(evt.Genres, ", "))
	}
	fmt.Println("Disconnected.")
}
