// Package compiler provides a small C-subset lexer, parser, and code
// generator that targets the stack machine's assembly language.
//
// Pipeline: C source → Lex → Parse → Generate → assembly text → asm.Assemble
package compiler
