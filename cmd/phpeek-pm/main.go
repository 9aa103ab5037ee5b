// Command phpeek-pm supervises a set of worker process instances declared
// in a YAML config tree (spec.md §3): it forks/execs them, watches their
// liveness, restarts them within a bounded rate, dials their service
// sockets for periodic stats, and exposes a read-only snapshot over HTTP.
package main

func main() {
	Execute()
}
