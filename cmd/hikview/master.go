package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hikforensics/hikview/hikvision"
	"github.com/hikforensics/hikview/image"
	"github.com/hikforensics/hikview/internal/config"
)

func newMasterCmd(flags *globalFlags) *cobra.Command {
	var imagePath, outputPath string

	cmd := &cobra.Command{
		Use:   "master",
		Short: "Locate the Master Sector and write its decoded metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := loadDefaults(flags)
			path := config.ApplyString(imagePath, defaults.Image)
			if path == "" {
				return writeErrorDoc(fmt.Errorf("--image is required"))
			}

			r, err := image.Open(path)
			if err != nil {
				return writeErrorDoc(err)
			}
			defer r.Close()

			var caseInfo any
			if ewf, ok := r.(*image.EwfReader); ok {
				if ci := ewf.CaseInfo(); ci != nil {
					caseInfo = ci
				}
			}

			doc, err := hikvision.BuildMasterDocument(r, path, caseInfo)
			if err != nil {
				return writeErrorDoc(err)
			}
			if err := writeJSONFile(outputPath, doc); err != nil {
				return writeErrorDoc(err)
			}
			return writeDoc(map[string]any{
				"type":         "master_complete",
				"success":      true,
				"output_file":  outputPath,
				"extra_offset": doc.MasterSector.ExtraOffset,
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the raw or EWF disk image")
	cmd.Flags().StringVar(&outputPath, "output", "master.json", "path to write the master document to")
	return cmd
}
