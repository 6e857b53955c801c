// Package catalog federates package searches across an ordered list of
// package servers.
//
// A [Federator] walks the connected servers in registration order and pages
// through each one until it reports no further pages. Names are
// de-duplicated for the lifetime of the Federator, so a package that two
// servers publish is only yielded from the first of them.
//
// The enumeration is stateful: a call to [Federator.Search] with a limit
// stops once that many new items were produced and the next call resumes
// exactly where the previous one stopped.
//
//	f := catalog.New(servers, logger)
//	first, _ := f.Search(ctx, "tc3", 20, 10)
//	more, _ := f.Search(ctx, "tc3", 20, 10) // next 20, no repeats
//
// Changing the search term or calling [Federator.Reset] starts over.
package catalog
