/*

Process of compilation

Managed Bytecode Module ->
	lower ->
Linear Intermediate Representation (ir.Unit) ->
	emit ->
Assembly Text (amd64) ->
	assemble ->
Object File ->
	link ->
Kernel Executable (ELF) ->
	build iso (optional) ->
Bootable ISO Image

*/
package compiler
