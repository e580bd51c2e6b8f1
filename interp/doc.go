// Package interp executes WebAssembly modules: an Environment owns
// the instantiated entities and name bindings, a builder validates
// binaries while compiling them to an internal instruction stream, and
// a Thread runs compiled functions on preallocated value and call
// stacks with trap semantics.
//
// The usual flow is NewEnvironment, optionally RegisterSpectest or
// AppendHostModule, then ReadBinary per module and RunExport per call.
// A failed load rolls the Environment back to the mark taken before
// it; traps abort one invocation and leave everything else usable.
package interp
