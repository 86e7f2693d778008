// Package session groups channel files into L/R capture sessions and
// synchronizes the two sides of a session to a common frame count.
//
// Types:
//   - ChannelFile (path, session id, side, channel index, byte length)
//   - Session / SideChannels (up to two sides of up to three channel slots)
//   - Groups (session id → Session, including incomplete sessions)
//   - Synchronizer / SyncPlan
//
// Functions:
//   - ParseChannelFile(path, size) → (ChannelFile, ok)
//     <session>_<side>_<channel>.<ext>; channel must be 0, 1 or 2.
//   - Group(files) → Groups
//     Order-invariant; duplicate slot claims resolve to the smallest path.
//   - (*Synchronizer).Plan(session) → SyncPlan
//     Per-side frame counts and their minimum.
//   - (*Synchronizer).Interleave(ctx, session, plan, side, w)
//     Opens the side's channels and packs exactly plan.Common frames.
package session
