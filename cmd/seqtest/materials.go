package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/seqtest/seqtest/internal/materials"
)

const materialsHelp = `seqtest update-materials (alias: u)

For every test with a materials directory under TestMaterials, copy files
that differ between its WorkingCopy and Prediction subdirectories back
into Prediction. Run this after a test run whose output you've reviewed
and want to accept as the new expected state.
`

// updateMaterialsCmd walks the materials root and, for every test directory
// that has both a WorkingCopy and a Prediction subdirectory, soft-updates
// Prediction from WorkingCopy.
func updateMaterialsCmd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("update-materials", flag.ExitOnError)
	fset.Usage = usage(fset, materialsHelp)
	fset.Parse(args)

	p, err := openProject()
	if err != nil {
		return err
	}

	return filepath.Walk(p.MaterialsRoot(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || filepath.Base(path) != "WorkingCopy" {
			return nil
		}
		prediction := filepath.Join(filepath.Dir(path), "Prediction")
		if _, statErr := os.Stat(prediction); statErr != nil {
			return nil
		}
		return materials.SoftUpdate(path, prediction)
	})
}
