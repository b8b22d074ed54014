// Package settings encrypts and decrypts lab settings documents value by
// value.
//
// A settings document is a JSON object. Encryption replaces each top-level
// value with a crypto blob string and leaves the keys readable, so the
// encrypted file still shows which settings it carries:
//
//	{"ModelName": "gpt-4o", "AzureOpenAI": {"Endpoint": "..."}}
//	-> {"ModelName": "<blob>", "AzureOpenAI": "<blob of the JSON object>"}
//
// Decryption parses each plaintext as JSON when possible. A string that
// looks like a JSON literal ("true", "42") therefore comes back typed.
//
// Document preserves member order, which later decides the order of the
// generated environment file.
package settings
