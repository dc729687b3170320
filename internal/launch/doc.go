// Package launch runs a compiled execution plan on the native engine, once
// per round.
//
// A launch is described by command-line style tokens, parsed once into a
// RoundPlan. The plan hands out a Cursor that resolves each round's
// configuration on demand: base batch arguments overlaid with that round's
// iteration bindings. The Coordinator advances the cursor and calls a
// Launcher per round, stopping at the first round that does not succeed.
//
// Rounds run strictly one after another. Cancellation is carried by the
// context; a round cut short by it reports StatusInterrupted.
package launch
