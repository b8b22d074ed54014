// Package discovery finds encrypted lab settings on disk.
//
// FindKeysDirectory accepts being started either inside the keys directory
// or anywhere below a directory that contains it. Selector then picks one of
// the candidate files in that directory at random.
package discovery
