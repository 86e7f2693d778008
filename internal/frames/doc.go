// Package frames transposes planar R, G and B channel dumps into a packed
// RGB24 stream.
//
// Types:
//   - Geometry (width × height of every frame; the unit of alignment)
//   - Interleaver (size policy, materialize/chunked strategy, memory budget)
//   - ByteSource (anything that can report a length and fill a byte range)
//
// Functions:
//   - (*Interleaver).FrameCount(lengths, max) → frames
//     min over the three supportable frame counts, capped by max.
//   - (*Interleaver).Interleave(ctx, srcs, max, w) → Result
//     Reads, packs and writes frames in strict offset order.
//   - Pack / Deinterleave
//     Bulk strided copies, one pass per channel.
//   - Scale(src, factor)
//     Optional per-channel brightness scale applied before packing.
package frames
