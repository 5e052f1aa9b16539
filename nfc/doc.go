// Package nfc implements the signal-to-frame decoder pipeline for the four
// ISO/IEC 14443/15693 NFC radio technologies (NFC-A, NFC-B, NFC-F, NFC-V).
//
// A single Decoder owns a ring-buffered envelope stream, a modulation
// detector bank that searches for a preamble on every enabled (technology,
// bitrate) pair, one symbol-recovery state machine per winning technology,
// and a bitstream/framing/CRC layer feeding a protocol tracker that adjusts
// timing windows for the frame that follows. See DESIGN.md for the full
// component map.
package nfc
