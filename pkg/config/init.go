package config

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/plcproj"
)

// FromSolution builds a new manifest for the solution at slnPath. Every
// .plcproj below a TwinCAT project becomes a PLC whose package sections
// are filled in by r. The manifest is saved next to the solution.
func FromSolution(ctx context.Context, slnPath string, r *Reconciler) (*Manifest, error) {
	sln, err := plcproj.ParseSolution(slnPath)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(slnPath)
	m := New(filepath.Join(root, DefaultFile))
	m.Solution = filepath.Base(slnPath)

	batch := errors.NewBatch("init")
	for _, sp := range sln.Projects {
		if !sp.TwinCAT() {
			continue
		}
		one := &plcproj.Solution{Path: sln.Path, Projects: []plcproj.SolutionProject{sp}}
		files, err := one.PlcProjects()
		if err != nil {
			return nil, err
		}

		project := Project{Name: sp.Name}
		for _, file := range files {
			proj, err := plcproj.ParseFile(file)
			if err != nil {
				batch.RecordItem(file, err)
				continue
			}
			rel, err := filepath.Rel(m.root, file)
			if err != nil {
				rel = file
			}
			plc := Plc{Name: proj.Name, FilePath: filepath.ToSlash(rel)}
			err = r.ReconcilePlc(ctx, &plc, proj)
			if err != nil && ctx.Err() != nil {
				return nil, err
			}
			batch.RecordItem("plc "+proj.Name, err)
			if err == nil {
				project.Plcs = append(project.Plcs, plc)
			}
		}
		if len(project.Plcs) > 0 {
			m.Projects = append(m.Projects, project)
		}
	}
	if len(m.Projects) == 0 && batch.Failed() == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no PLC projects found in %s", slnPath)
	}
	return m, batch.Err()
}

// FindManifest returns the manifest path for dir: dir itself when it names
// a file, else DefaultFile inside dir.
func FindManifest(dir string) string {
	if strings.EqualFold(filepath.Ext(dir), ".json") {
		return dir
	}
	return filepath.Join(dir, DefaultFile)
}
