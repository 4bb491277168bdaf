// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// mctpsend sends a request read from stdin via a mctpd's WebSocket agent and prints the response.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dtn7/mctp-go/pkg/agent"
	"github.com/dtn7/mctp-go/pkg/mctp"
)

// responseTimeout equals the remote's reassembly and flow timeout.
const responseTimeout = 6 * time.Second

func showHelp() {
	fmt.Printf("mctpsend <WS-URL> <EID> <TYPE>\n\n")
	fmt.Printf("  sends data from stdin as a request to the given endpoint\n")
	fmt.Printf("  and prints the response's payload hex encoded\n\n")
	fmt.Printf("Examples:\n")
	fmt.Printf("  printf '\\x80\\x02' | mctpsend ws://localhost:8080/ws 9 0\n")
}

func parseByte(name, s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", name, s, err)
	}
	return uint8(v), nil
}

func sendRequest(url string, eid mctp.Eid, typ mctp.MsgType, payload []byte) ([]byte, error) {
	wac, err := agent.NewWebSocketAgentConnector(url)
	if err != nil {
		return nil, err
	}
	defer wac.Close()

	cookie, err := wac.Request(eid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = wac.Unbind(cookie) }()

	if _, err := wac.Send(nil, typ, nil, false, cookie, payload); err != nil {
		return nil, err
	}

	for {
		msg, err := wac.ReadMessage(responseTimeout)
		if err != nil {
			return nil, err
		} else if msg.Cookie == cookie {
			return msg.Payload, nil
		}
	}
}

func main() {
	args := os.Args[1:]

	if len(args) == 1 {
		switch args[0] {
		case "help", "--help", "-h":
			showHelp()
			return
		}
	}

	if len(args) != 3 {
		fmt.Printf("Amount of parameters is wrong.\n\n")
		showHelp()
		os.Exit(1)
	}

	eid, err := parseByte("EID", args[1])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	typ, err := parseByte("message type", args[2])
	if err != nil || typ > 0x7F {
		fmt.Printf("Invalid message type %s\n", args[2])
		os.Exit(1)
	}

	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Printf("Failed to read data from stdin: %v\n", err)
		os.Exit(1)
	}

	resp, err := sendRequest(args[0], mctp.Eid(eid), mctp.MsgType(typ), payload)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(resp))
}
