// Package vm implements the Slang bytecode virtual machine.
//
// This package contains:
//   - Tagged value representation with ownership bookkeeping
//   - Per-invocation operand stacks and local scopes
//   - The builtin registry
//   - Code object extraction and nested execution (CODE/EXEC)
//   - The fetch/decode/dispatch interpreter loop
package vm
