// Package canlink is the adapter-side wire and segmentation library for the
// CANyonero diagnostic stack. It implements the framed request/response
// protocol spoken between host tooling and a CANyonero adapter, the ISO-TP
// segmentation engines (classical and CAN-FD) that drive a host's CAN link,
// K-Line multi-frame reassembly for KWP2000/ISO 9141-2, and the host-side
// protocol client that correlates synchronous requests with asynchronous
// bus events over a single byte stream.
package canlink
