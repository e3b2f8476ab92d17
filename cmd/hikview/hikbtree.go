package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hikforensics/hikview/hikvision"
	"github.com/hikforensics/hikview/image"
	"github.com/hikforensics/hikview/internal/config"
)

func newHikbtreeCmd(flags *globalFlags) *cobra.Command {
	var imagePath, masterPath, outputPath string

	cmd := &cobra.Command{
		Use:   "hikbtree",
		Short: "Walk the HIKBTREE index using a previously produced master document",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := loadDefaults(flags)
			path := config.ApplyString(imagePath, defaults.Image)
			if path == "" {
				return writeErrorDoc(fmt.Errorf("--image is required"))
			}

			master, err := hikvision.LoadMasterDocument(masterPath)
			if err != nil {
				return writeErrorDoc(err)
			}

			r, err := image.Open(path)
			if err != nil {
				return writeErrorDoc(err)
			}
			defer r.Close()

			doc, err := hikvision.ParseHikbtree(r, master.MasterSector.Hikbtree1Offset.Value, master.MasterSector.ExtraOffset)
			if err != nil {
				return writeErrorDoc(err)
			}
			doc.ImageInfo = hikvision.ImageInfo{
				Filename:  master.ImageInfo.Filename,
				FullPath:  master.ImageInfo.FullPath,
				SizeBytes: r.Size(),
			}

			if err := writeJSONFile(outputPath, doc); err != nil {
				return writeErrorDoc(err)
			}
			return writeDoc(map[string]any{
				"type":        "hikbtree_complete",
				"success":     true,
				"output_file": outputPath,
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the raw or EWF disk image")
	cmd.Flags().StringVar(&masterPath, "master", "master.json", "path to a previously written master document")
	cmd.Flags().StringVar(&outputPath, "output", "hikbtree.json", "path to write the HIKBTREE document to")
	return cmd
}
