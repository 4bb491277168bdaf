// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package mctp

import "errors"

// These errors are returned, possibly wrapped, by the packages of this module. Use errors.Is to check for them.
var (
	// ErrNoSpace indicates an exhausted table or buffer.
	ErrNoSpace = errors.New("no space left")

	// ErrAddrInUse indicates that something is already bound, e.g., a listener for some message type.
	ErrAddrInUse = errors.New("address in use")

	// ErrBadArgument indicates a malformed or unknown argument, e.g., an already released handle.
	ErrBadArgument = errors.New("bad argument")

	// ErrInvalidInput indicates input which cannot be processed, e.g., an unresolvable destination or a broken packet.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTagUnavailable indicates that all tag values towards a peer are currently in use.
	ErrTagUnavailable = errors.New("no tag available")

	// ErrTimedOut indicates an expired operation.
	ErrTimedOut = errors.New("timed out")

	// ErrTxFailure indicates a failed transmission.
	ErrTxFailure = errors.New("transmission failed")

	// ErrUnsupported indicates an unsupported feature or protocol version.
	ErrUnsupported = errors.New("unsupported")
)
