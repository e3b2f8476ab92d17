package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hikforensics/hikview/hikvision"
	"github.com/hikforensics/hikview/image"
	"github.com/hikforensics/hikview/internal/config"
)

func newLogsCmd(flags *globalFlags) *cobra.Command {
	var imagePath, masterPath, outputPath string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Decode the system log stream using a previously produced master document",
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

			ms := master.MasterSector
			doc, err := hikvision.ParseSystemLogs(r, ms.SystemLogsOffset.Value, ms.SystemLogsSize.Value, ms.ExtraOffset)
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
				"type":        "logs_complete",
				"success":     true,
				"output_file": outputPath,
				"entry_count": len(doc.SystemLogs),
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the raw or EWF disk image")
	cmd.Flags().StringVar(&masterPath, "master", "master.json", "path to a previously written master document")
	cmd.Flags().StringVar(&outputPath, "output", "logs.json", "path to write the system-log document to")
	return cmd
}
