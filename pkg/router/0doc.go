// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package router multiplexes multiple application contexts over a single MCTP endpoint.
//
// A Router owns an estack.Stack and a Sender, the outgoing side of a transport binding. Applications bind either a
// listener for some message type or a request context for some destination EID. Each binding is identified by an
// mctp.AppCookie. Incoming messages are attached to their binding's cookie and kept in the Stack's deferred queue
// until the application fetches them by calling Recv.
//
// All handle tables have a fixed capacity, chosen when creating the Router. The Router is single-threaded and never
// blocks; concurrent usage must be synchronized by the caller.
package router
