// Package assistant contains the orchestration logic that turns a user
// query into a grounded, streamed answer. The SearchAssistant runs the full
// pipeline for one invocation: pick a generation backend from the
// preference order (falling back on load failures), run the search, then
// stream the generated answer while pacing UI updates through a flush gate.
package assistant
