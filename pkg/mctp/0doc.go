// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mctp contains the shared vocabulary of the Management Component Transport Protocol (MCTP, DMTF DSP0236).
//
// Endpoint IDs, message types, tags and application cookies are defined here, together with the sentinel errors
// used by every other package and the codec for the four byte MCTP transport header.
package mctp
