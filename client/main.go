package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/picword/network"
	"github.com/wfunc/picword/router"
)

const usage = `commands:
  create <name> [capacity]   create a room and join it as host
  join <room_id> <name>      join an existing room
  start                      start the game (host)
  answer <word>              answer the current round
  next                       advance to the next round
  status                     show the room snapshot
  leave                      leave the room
  quit`

var msgNames = map[uint16]string{
	network.MsgTypeHeartbeat:    "heartbeat",
	network.MsgTypeCreateRoom:   "create",
	network.MsgTypeJoinRoom:     "join",
	network.MsgTypeLeaveRoom:    "leave",
	network.MsgTypeStartGame:    "start",
	network.MsgTypeSubmitAnswer: "answer",
	network.MsgTypeAdvanceRound: "next",
	network.MsgTypeGetStatus:    "status",
	network.MsgTypeRoomEvent:    "event",
	network.MsgTypeServerNotice: "notice",
	network.MsgTypeError:        "error",
}

// send encodes v as JSON and writes one framed packet.
func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// command turns one input line into a message. The server fills room id and
// player name from the connection, so most commands send an empty body.
func command(line string) (uint16, interface{}, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, nil
	}
	args := fields[1:]
	switch fields[0] {
	case "create":
		if len(args) < 1 {
			return 0, nil, fmt.Errorf("usage: create <name> [capacity]")
		}
		req := router.CreateRoomRequest{Name: args[0]}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return 0, nil, fmt.Errorf("bad capacity %q", args[1])
			}
			req.Capacity = n
		}
		return network.MsgTypeCreateRoom, req, nil
	case "join":
		if len(args) < 2 {
			return 0, nil, fmt.Errorf("usage: join <room_id> <name>")
		}
		return network.MsgTypeJoinRoom, router.JoinRoomRequest{RoomID: args[0], Name: args[1]}, nil
	case "start":
		return network.MsgTypeStartGame, nil, nil
	case "answer":
		return network.MsgTypeSubmitAnswer, router.SubmitAnswerRequest{Answer: strings.Join(args, " ")}, nil
	case "next":
		return network.MsgTypeAdvanceRound, nil, nil
	case "status":
		return network.MsgTypeGetStatus, nil, nil
	case "leave":
		return network.MsgTypeLeaveRoom, nil, nil
	default:
		return 0, nil, fmt.Errorf("unknown command %q\n%s", fields[0], usage)
	}
}

func main() {
	addr := flag.String("addr", "localhost:5555", "server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			if packet.MsgID == network.MsgTypeHeartbeat {
				continue
			}
			log.Printf("<- %s: %s", msgNames[packet.MsgID], string(packet.Data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()

	fmt.Println(usage)

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "quit" {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			msgID, body, err := command(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if msgID == 0 {
				continue
			}
			if err := send(c, msgID, body); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
