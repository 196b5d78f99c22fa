// ws_bridge exposes a spawned agent process over a websocket: client
// messages go to the agent's stdin, and each stdout/stderr line comes
// back as a JSON frame. Intended for driving `codeflow -acp` from a
// browser or editor that cannot spawn processes itself.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type frame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	cmdArgs := flag.Args()
	if len(cmdArgs) == 0 {
		log.Fatal("usage: ws_bridge [-addr :8080] <agent-command> [args...]")
	}

	http.HandleFunc("/ws", handleWS(cmdArgs))
	fmt.Printf("WebSocket bridge running on ws://localhost%s/ws\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handleWS(cmdArgs []string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}
		defer conn.Close()

		// One agent process per connection; it dies with the socket.
		cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			log.Println("stdin pipe error:", err)
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			log.Println("stdout pipe error:", err)
			return
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			log.Println("stderr pipe error:", err)
			return
		}
		if err := cmd.Start(); err != nil {
			log.Println("error starting agent:", err)
			return
		}
		defer cmd.Process.Kill()

		go pipeLines(conn, stdout, "stdout")
		go pipeLines(conn, stderr, "stderr")

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Println("ws read error:", err)
				return
			}
			if _, err := stdin.Write(append(msg, '\n')); err != nil {
				log.Println("stdin write error:", err)
				return
			}
		}
	}
}

// pipeLines forwards each line from the agent as one JSON frame.
func pipeLines(conn *websocket.Conn, r io.Reader, kind string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		payload, err := json.Marshal(frame{Type: kind, Data: scanner.Text()})
		if err != nil {
			log.Println("frame marshal error:", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Println("ws write error:", err)
			return
		}
	}
}
