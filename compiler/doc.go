/*
Package compiler glues the stages together.

Process of compilation

Program Text (with #include files) ->
	parse ->
Abstract Syntax Tree (ast) ->
	analyze ->
Typed Intermediate Representation (ir) ->
	back (ABI classification, lowering, register allocation) ->
Assembly Text (NASM, x86-64 SysV) ->
	toolchain: assemble ->
Binary Object (obj) ->
	toolchain: link ->
Binary Executable
*/
package compiler
