// Package config reads, validates and writes the plcpack manifest and keeps
// it in sync with the native PLC projects it describes.
//
// The manifest is a JSON file (plcpack.json by default) listing the
// projects of a solution, their PLCs and the packages each PLC references:
//
//	{
//	  "fileversion": 1,
//	  "solution": "Machine.sln",
//	  "projects": [{
//	    "name": "Machine",
//	    "plcs": [{
//	      "name": "Plc", "version": "1.0.0.0", "type": "Application",
//	      "packages": [{"name": "ZCore", "version": "1.2.3.4", "distributor-name": "Zeugwerk GmbH"}],
//	      "references": {"*": ["Tc2_Standard=*"]}
//	    }]
//	  }]
//	}
//
// A composite manifest lists other manifests under "modules" instead of
// declaring projects itself. [Load] always takes the directory paths are
// relative to; it never changes the working directory.
//
// The package-related sections of a PLC (packages, frameworks, references)
// are derived data. [Reconciler.ReconcilePlc] regenerates them wholesale
// from the PLC's .plcproj file.
package config
