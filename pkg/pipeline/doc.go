// Package pipeline hosts the shared abstractions for compiling and executing
// genopipe analysis runs. It exposes the `Service` facade plus helpers
// (`Factory`, `Resolve`, `BuildDependencies`) so CLI packages can inject
// engine dependencies once and obtain a runner, while unit tests can swap in
// fakes. This keeps the compile, execute, and check orchestration in the
// internal packages reusable without wiring duplication.
package pipeline
