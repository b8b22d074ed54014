// Package core distributes lab settings.
//
// A Distributor walks up from a start directory to the keys directory,
// picks one encrypted settings file at random, decrypts every field and
// writes the flattened result as an env file below the labs directory:
//
//	labs/
//	  keys/lab1.appsettings.Local_encrypted.json
//	  python/.env   <- written here
//
// Runs end in one of two states. Skipped means the env file was already
// there and nothing was read. Configured means it was written, in full,
// after every field decrypted. First-run writes use exclusive creation so
// concurrent lab processes agree on one writer; overwrites go through a
// temporary file and a rename.
package core
