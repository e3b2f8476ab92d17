package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hikforensics/hikview/hikvision"
	"github.com/hikforensics/hikview/image"
	"github.com/hikforensics/hikview/internal/config"
)

func newExtractCmd(flags *globalFlags) *cobra.Command {
	var imagePath, masterPath, outputDir, offsetHex string
	var extraOffsetOverride int64
	var hasOverride bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Carve a single data block's H.264 payload out of the image",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := loadDefaults(flags)
			path := config.ApplyString(imagePath, defaults.Image)
			if path == "" {
				return writeErrorDoc(fmt.Errorf("--image is required"))
			}
			if offsetHex == "" {
				return writeErrorDoc(fmt.Errorf("--offset is required"))
			}
			dir := config.ApplyString(outputDir, config.ApplyString(defaults.OutputDir, "."))

			master, err := hikvision.LoadMasterDocument(masterPath)
			if err != nil {
				return writeErrorDoc(err)
			}
			if master.MasterSector.DataBlockSize.Value == 0 {
				return writeErrorDoc(fmt.Errorf("%w: master_sector.data_block_size", hikvision.ErrDependentMetadataMissing))
			}

			extraOffset := master.MasterSector.ExtraOffset
			if hasOverride {
				extraOffset = extraOffsetOverride
			} else if defaults.ExtraOffset != 0 {
				extraOffset = defaults.ExtraOffset
			}

			r, err := image.Open(path)
			if err != nil {
				return writeErrorDoc(err)
			}
			defer r.Close()

			outPath, err := hikvision.ExtractVideoBlock(r, offsetHex, extraOffset, master.MasterSector.DataBlockSize.Value, dir)
			if err != nil {
				return writeErrorDoc(err)
			}
			return writeDoc(map[string]any{
				"type": "extract_complete",
				"path": outPath,
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the raw or EWF disk image")
	cmd.Flags().StringVar(&masterPath, "master", "master.json", "path to a previously written master document")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write the carved .h264 file into")
	cmd.Flags().StringVar(&offsetHex, "offset", "", "hex offset of the data block to carve, e.g. 0x1A2B3C00")
	cmd.Flags().Int64Var(&extraOffsetOverride, "extra-offset", 0, "override the master document's extra_offset")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasOverride = cmd.Flags().Changed("extra-offset")
	}
	return cmd
}
