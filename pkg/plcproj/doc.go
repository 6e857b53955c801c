// Package plcproj reads TwinCAT PLC project files.
//
// A .plcproj is an MSBuild-style XML document. plcpack only needs its
// identity (name, title, company, version), the compiled task objects it
// contains, and its library references, which come in two shapes:
//
//   - placeholder references, whose default resolution is written as
//     "Name, Version (Distributor)" with "*" as the version wildcard
//   - fixed library references, written as "Name,Version,Distributor"
//
// Both grammars have a dedicated parser, [ParsePlaceholder] and
// [ParseLibraryReference], that fails with an INVALID_REFERENCE error on
// malformed input instead of skipping the entry.
//
// [ParseSolution] reads the Visual Studio solution that owns the PLC
// projects, and [FromLibrary] describes a PLC that only exists as a
// compiled .library file through its embedded metadata.
package plcproj
