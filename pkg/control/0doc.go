// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package control implements a subset of the MCTP control protocol, message type 0x00.
//
// The Responder answers the endpoint related commands of a simple endpoint with a dynamic EID. For the requesting
// side, this package contains encoders for requests and decoders for the matching responses.
package control
