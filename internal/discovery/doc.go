// Package discovery builds the set of files to tag by querying git.
//
// The base query lists tracked files honoring the standard exclude rules.
// Optional queries add untracked or ignored files, and submodule contents can
// be recursed into. Files tracked by git-lfs and files matching exclude globs
// can be removed afterwards. The result is distinct and sorted bytewise so
// that identical trees always produce identical chunking.
//
// Discovery never writes to the filesystem. Any failing or undecodable query
// aborts the run with a *types.DiscoveryError; there is no partial file set.
package discovery
