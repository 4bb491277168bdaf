// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package estack is a single endpoint MCTP stack engine with a fixed memory footprint.
//
// The Stack parses and reassembles incoming packets into Messages, hands out Fragmenters to split outgoing messages
// into packets, allocates tags for outgoing requests and keeps retained Messages in a deferred queue until they are
// fetched by their AppCookie. All state lives in fixed-size arrays which are allocated once together with the Stack.
//
// A Stack is not safe for concurrent use. Time does not pass by itself; the caller has to supply a monotonic
// millisecond counter to Update.
package estack
