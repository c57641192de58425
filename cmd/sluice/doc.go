// Command sluice coordinates bulk video transcription runs: splitting id
// lists into chunks, dispatching parallel worker processes, tracking
// completion in the results ledger, and inspecting progress and logs.
package main
