// Package s1frames acquires detector output frames for the bot cycle.
//
// A Frame is one batch of bounding-box detections for one captured screen
// frame, produced out-of-process by the detector sidecar and consumed here
// through the Source interface. Five sources ship with the package:
//
//   - UDPSource: live JSON datagram feed from the sidecar.
//   - HTTPSource: polling fallback against the sidecar's HTTP endpoint.
//   - ReplaySource: JSONL recording playback with recorded pacing.
//   - PCAPSource: packet-capture playback of a UDP feed.
//   - SyntheticSource: seeded projectile-toss generator for demos and tests.
//
// RecordingSource and PacketLog tee a live feed to JSONL and pcap files for
// later replay. Orderly end of a finite feed is reported as io.EOF; wire
// payloads are carried at millisecond timestamp precision.
package s1frames
