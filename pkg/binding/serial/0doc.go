// SPDX-FileCopyrightText: 2026 mctp-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package serial implements the MCTP serial transport binding (DSP0253).
//
// Each MCTP packet is wrapped into an HDLC-like frame with byte stuffing and a FCS-16. Next to serial devices, the
// framing is also usable over any other byte stream, e.g., TCP connections to serial device servers.
package serial
