// Package logger provides leveled output for labkeys commands.
//
//	--verbose  info messages
//	--debug    info and debug messages
//
// Warnings and errors are always shown. Library packages never log; only
// the cmd package holds a Logger.
package logger
