// Package libmeta decodes the project information embedded in compiled PLC
// library artifacts (.library / .compiled-library files).
//
// A compiled library carries its project properties (Company, Title,
// Version, Author, ...) as a string table that follows a fixed GUID marker.
// Each table entry is announced by two variable-length integers: its
// sequence index and its byte length. Entries form an alternating
// key/value list:
//
//	props, err := libmeta.Decode(data)
//	if err != nil {
//	    return err
//	}
//	company := props.Lookup("company") // case-insensitive
//
// Decoding stops at the first entry whose index does not continue the
// sequence, so trailing binary data after the table is ignored.
//
// [Info] is the typed view used when a PLC has no native project file and
// only its compiled artifact is available.
package libmeta
