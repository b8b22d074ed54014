// Package config loads the labkeys directory layout.
//
// Defaults match the lab repositories:
//
//	labs/
//	  python/.env                                  <- destination
//	  ...
//	  keys/<name>.appsettings.Local_encrypted.json <- sources
//
// An optional YAML file (--config or $LABKEYS_CONFIG) overrides the defaults;
// LABKEYS_TARGET_SUBDIR, LABKEYS_ENV_FILE and LABKEYS_EXCLUSIVE_CREATE
// override the file.
package config
