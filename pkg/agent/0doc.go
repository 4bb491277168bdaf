// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent exposes an MCTP node to external programs.
//
// The WebSocketAgent lets each connected client bind listeners and requests, send messages and receive the messages
// of its own handles. All messages are CBOR encoded. The WebSocketAgentConnector is the matching client.
package agent
