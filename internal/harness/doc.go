// Package harness runs the Complement conformance suite against a packaged
// image and produces diffable result files.
//
// A run moves through a fixed sequence of states:
//
//	Idle -> ImageLoaded -> SuiteRunning -> ResultsCaptured -> Normalized -> Done
//
// with Failed reachable from every state before Done. The image archive is
// loaded into the container runtime under a tag unique to the run, then the
// suite is started with COMPLEMENT_BASE_IMAGE pointing at it. The suite's
// standard output, a stream of go test JSON events, is copied verbatim into
// complement_test_logs.jsonl. Individual test failures make the suite exit
// non-zero; that is data, not a harness failure. Only a suite that cannot be
// started or that is killed by a signal fails the run.
//
// The raw stream is then reduced to pass, fail, and skip events that name a
// test, projected to {"Action","Test"} objects, sorted, and written to
// complement_test_results.jsonl. Two runs against different builds can be
// compared with a plain diff of that file. See [Normalize].
//
// Runs against different images may execute concurrently. A [Harness] gates
// them with a weighted semaphore whose size comes from configuration.
package harness
