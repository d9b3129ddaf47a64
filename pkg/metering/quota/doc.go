// Package quota decides whether an actor may keep consuming.
//
// Evaluate reads the actor's current-period cost and storage aggregates,
// resolves its subscription policy and compares each total against the
// matching allowance. The comparison is inclusive: a total equal to the
// allowance is allowed, a strictly greater total is a breach. Cost and
// storage are judged independently and both breaches are reported.
//
// Decisions are advisory; the caller decides what to do with a breach. The
// global platform actor is never limited. A failed read is returned as an
// error, never guessed into a decision.
package quota
