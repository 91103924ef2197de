package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"bookgraph/pkg/models"
)

func main() {
	server := "127.0.0.1:7070"
	if len(os.Args) > 1 {
		server = os.Args[1]
	}

	serverAddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve:", err)
		os.Exit(1)
	}

	// same socket sends SUBSCRIBE and receives events
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte("SUBSCRIBE"), serverAddr); err != nil {
		fmt.Fprintln(os.Stderr, "subscribe:", err)
		os.Exit(1)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		_, _ = conn.WriteToUDP([]byte("UNSUBSCRIBE"), serverAddr)
		conn.Close()
	}()

	fmt.Println("UDP monitor subscribed to:", server)
	fmt.Println("Local addr:", conn.LocalAddr().String())

	buf := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		var evt models.BookAdded
		if err := json.Unmarshal(buf[:n], &evt); err != nil {
			fmt.Println(string(buf[:n]))
			continue
		}
		fmt.Printf("[%s] %q by %s\n", time.Unix(evt.Timestamp, 0).Format(time.TimeOnly), evt.Title, evt.Author)
	}
	fmt.Println("Unsubscribed.")
}
